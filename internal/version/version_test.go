package version

import "testing"

func TestResolve(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })
	Version = "v1.0.0"

	t.Setenv("SCHLUESSEL_VERSION", "")
	if got := Resolve(); got != "v1.0.0" {
		t.Errorf("Resolve() = %q, want link-time version", got)
	}

	t.Setenv("SCHLUESSEL_VERSION", "2.3.4")
	if got := Resolve(); got != "2.3.4" {
		t.Errorf("Resolve() = %q, want SCHLUESSEL_VERSION", got)
	}
}
