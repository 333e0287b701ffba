package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrMalformed wraps every failure to decode a registration payload.
var ErrMalformed = errors.New("malformed registration")

// Service is one clickable target on the dashboard.
//
// On the wire a service is the two element array ["name", "url"].
type Service struct {
	Name string
	URL  string
}

// Registration is the payload a lock sends to announce itself.
type Registration struct {
	Domain   string    `json:"domain"`
	Services []Service `json:"services"`
}

// Snapshot is a point-in-time copy of the registry. It shares nothing with the
// live map and may be read without locking.
type Snapshot map[string][]Service

// Domains returns the snapshot's domains in lexical order.
func (s Snapshot) Domains() []string {
	domains := make([]string, 0, len(s))
	for d := range s {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// MarshalJSON encodes the service as ["name", "url"].
func (s Service) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{s.Name, s.URL})
}

// UnmarshalJSON accepts exactly a two element array of strings.
func (s *Service) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("service must be a [name, url] array: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("service must have exactly 2 elements, got %d", len(raw))
	}

	var name, url string
	if err := unmarshalString(raw[0], &name); err != nil {
		return fmt.Errorf("service name: %w", err)
	}
	if err := unmarshalString(raw[1], &url); err != nil {
		return fmt.Errorf("service url: %w", err)
	}

	s.Name, s.URL = name, url
	return nil
}

// unmarshalString rejects null, which encoding/json would otherwise accept
// as a no-op for a string target.
func unmarshalString(data json.RawMessage, dst *string) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("must be a string, got null")
	}
	return json.Unmarshal(data, dst)
}

// wireRegistration uses pointers to tell a missing field from an empty one.
type wireRegistration struct {
	Domain   *string    `json:"domain"`
	Services *[]Service `json:"services"`
}

// DecodeRegistration reads one JSON registration from r. Any structural
// problem is reported as ErrMalformed before the registry is involved.
// Extra top-level fields are ignored, so locks may send metadata alongside.
func DecodeRegistration(r io.Reader) (Registration, error) {
	dec := json.NewDecoder(r)

	var w wireRegistration
	if err := dec.Decode(&w); err != nil {
		return Registration{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if dec.More() {
		return Registration{}, fmt.Errorf("%w: trailing data after payload", ErrMalformed)
	}
	if w.Domain == nil {
		return Registration{}, fmt.Errorf("%w: missing field \"domain\"", ErrMalformed)
	}
	if w.Services == nil {
		return Registration{}, fmt.Errorf("%w: missing field \"services\"", ErrMalformed)
	}

	return Registration{Domain: *w.Domain, Services: *w.Services}, nil
}
