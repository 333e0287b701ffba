package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/schluessel/internal/registry"
)

// Loader reads static registrations from a YAML file.
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a loader for filePath. ${VAR} references in the file are
// expanded from the environment.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Path returns the file the loader reads.
func (l *Loader) Path() string { return l.filePath }

// Load reads, expands and parses the seed file.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	data = l.expand(data)

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	return file, nil
}

// expand replaces ${VAR} with its environment value. Unset variables become empty.
func (l *Loader) expand(data []byte) []byte {
	return []byte(os.Expand(string(data), func(key string) string {
		v, _ := l.lookup(key)
		return v
	}))
}

// Registrations converts the file into registry payloads, in file order.
// A missing domain or a domain listed twice is an error.
func (f File) Registrations() ([]registry.Registration, error) {
	seen := make(map[string]bool, len(f))
	regs := make([]registry.Registration, 0, len(f))

	for i, entry := range f {
		if entry.Domain == "" {
			return nil, fmt.Errorf("entry %d: domain is required", i)
		}
		if seen[entry.Domain] {
			return nil, fmt.Errorf("entry %d: domain %q listed more than once", i, entry.Domain)
		}
		seen[entry.Domain] = true

		services := make([]registry.Service, 0, len(entry.Services))
		for _, svc := range entry.Services {
			services = append(services, registry.Service{Name: svc.Name, URL: svc.URL})
		}
		regs = append(regs, registry.Registration{Domain: entry.Domain, Services: services})
	}

	return regs, nil
}
