package registry

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestNewRegistryIsEmpty(t *testing.T) {
	r := New()
	if r.Len() != 0 {
		t.Errorf("New() should start empty, got %d domains", r.Len())
	}
	if snap := r.Snapshot(); len(snap) != 0 {
		t.Errorf("Snapshot() of empty registry = %v, want empty", snap)
	}
}

func TestRegisterEchoesPayload(t *testing.T) {
	r := New()
	reg := Registration{
		Domain: "svc.example.com",
		Services: []Service{
			{Name: "Mail", URL: "https://mail.svc.example.com"},
			{Name: "Files", URL: "https://files.svc.example.com"},
		},
	}

	got := r.Register(reg)
	if !reflect.DeepEqual(got, reg) {
		t.Errorf("Register() = %+v, want echo %+v", got, reg)
	}

	services, ok := r.Lookup("svc.example.com")
	if !ok {
		t.Fatal("Lookup() did not find registered domain")
	}
	if !reflect.DeepEqual(services, reg.Services) {
		t.Errorf("Lookup() = %+v, want %+v", services, reg.Services)
	}
}

func TestRegisterOverwrites(t *testing.T) {
	r := New()

	r.Register(Registration{Domain: "d", Services: []Service{
		{Name: "old-1", URL: "https://old-1"},
		{Name: "shared", URL: "https://shared"},
	}})
	l2 := []Service{
		{Name: "shared", URL: "https://shared"},
		{Name: "new-1", URL: "https://new-1"},
		{Name: "new-2", URL: "https://new-2"},
	}
	r.Register(Registration{Domain: "d", Services: l2})

	got, _ := r.Lookup("d")
	if !reflect.DeepEqual(got, l2) {
		t.Errorf("Register() should replace the list, got %+v want %+v", got, l2)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegisterEmptyListReplaces(t *testing.T) {
	r := New()
	r.Register(Registration{Domain: "d", Services: []Service{{Name: "a", URL: "https://a"}}})
	r.Register(Registration{Domain: "d", Services: nil})

	got, ok := r.Lookup("d")
	if !ok {
		t.Fatal("domain should still be registered with an empty list")
	}
	if len(got) != 0 {
		t.Errorf("Lookup() = %+v, want empty list", got)
	}
}

func TestRegisterIsolatesDomains(t *testing.T) {
	r := New()
	b := []Service{{Name: "b", URL: "https://b"}}
	r.Register(Registration{Domain: "b.example.com", Services: b})

	r.Register(Registration{Domain: "a.example.com", Services: []Service{{Name: "a", URL: "https://a"}}})
	r.Register(Registration{Domain: "a.example.com", Services: []Service{{Name: "a2", URL: "https://a2"}}})

	got, ok := r.Lookup("b.example.com")
	if !ok || !reflect.DeepEqual(got, b) {
		t.Errorf("registering a.example.com touched b.example.com: %+v", got)
	}
}

func TestRegisterCopiesCallerSlice(t *testing.T) {
	r := New()
	services := []Service{{Name: "a", URL: "https://a"}}
	r.Register(Registration{Domain: "d", Services: services})

	services[0].Name = "mutated"

	got, _ := r.Lookup("d")
	if got[0].Name != "a" {
		t.Errorf("caller mutation reached the registry: %+v", got)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	r := New()
	r.Register(Registration{Domain: "d", Services: []Service{{Name: "a", URL: "https://a"}}})

	snap := r.Snapshot()
	snap["d"][0].URL = "https://evil"
	snap["other"] = nil

	got, _ := r.Lookup("d")
	if got[0].URL != "https://a" {
		t.Errorf("Snapshot() mutation reached the registry: %+v", got)
	}
	if r.Len() != 1 {
		t.Errorf("Snapshot() map mutation reached the registry, Len() = %d", r.Len())
	}
}

func TestSnapshotDomainsSorted(t *testing.T) {
	r := New()
	for _, d := range []string{"c", "a", "b"} {
		r.Register(Registration{Domain: d})
	}

	got := r.Snapshot().Domains()
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Domains() = %v, want %v", got, want)
	}
}

func TestLookupMissing(t *testing.T) {
	r := New()
	if _, ok := r.Lookup("nope"); ok {
		t.Error("Lookup() on unknown domain should report false")
	}
}

// payloadFor builds a list whose entries all carry the writer's id, so an
// interleaved list would mix ids.
func payloadFor(id, size int) []Service {
	services := make([]Service, size)
	for i := range services {
		services[i] = Service{
			Name: fmt.Sprintf("writer-%d", id),
			URL:  fmt.Sprintf("https://writer-%d.example.com/%d", id, i),
		}
	}
	return services
}

func TestConcurrentSameDomainLastWriterWins(t *testing.T) {
	r := New()
	const writers = 100

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.Register(Registration{Domain: "contended", Services: payloadFor(id, 1+id%7)})
		}(i)
	}
	wg.Wait()

	got, ok := r.Lookup("contended")
	if !ok {
		t.Fatal("contended domain missing after concurrent registration")
	}
	if len(got) == 0 {
		t.Fatal("contended domain holds an empty list")
	}

	var id int
	if _, err := fmt.Sscanf(got[0].Name, "writer-%d", &id); err != nil {
		t.Fatalf("unexpected entry %+v: %v", got[0], err)
	}
	if want := payloadFor(id, 1+id%7); !reflect.DeepEqual(got, want) {
		t.Errorf("registry holds a corrupted payload:\n got  %+v\n want %+v", got, want)
	}
}

func TestConcurrentSnapshotSeesWholeLists(t *testing.T) {
	r := New()
	const domains = 50
	const size = 20

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, 1)

	// Readers check every snapshot while writers churn.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for domain, services := range r.Snapshot() {
					if len(services) != size {
						select {
						case errs <- fmt.Errorf("domain %s has %d entries, want %d", domain, len(services), size):
						default:
						}
						return
					}
				}
			}
		}()
	}

	var writers sync.WaitGroup
	for i := 0; i < domains; i++ {
		writers.Add(1)
		go func(id int) {
			defer writers.Done()
			for round := 0; round < 10; round++ {
				r.Register(Registration{
					Domain:   fmt.Sprintf("d%d.example.com", id),
					Services: payloadFor(id*100+round, size),
				})
			}
		}(i)
	}
	writers.Wait()
	close(stop)
	wg.Wait()

	select {
	case err := <-errs:
		t.Fatal(err)
	default:
	}

	if r.Len() != domains {
		t.Errorf("Len() = %d, want %d", r.Len(), domains)
	}
}
