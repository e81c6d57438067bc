package capability

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/1broseidon/taskmirror/internal/platform"
)

type fakeService struct {
	methods map[string]bool
	lookups atomic.Int32
}

func (f *fakeService) Method(name string) (platform.Method, bool) {
	f.lookups.Add(1)
	if !f.methods[name] {
		return nil, false
	}
	return func(...int) (any, error) { return name, nil }, true
}

func serviceWith(names ...string) *fakeService {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return &fakeService{methods: m}
}

func TestResolve_PicksNewestEligibleCandidate(t *testing.T) {
	all := serviceWith(
		"getFocusedRootTaskInfo", "getFocusedStackInfo",
		"getAllRootTaskInfosOnDisplay", "getAllStackInfosOnDisplay",
	)

	tests := []struct {
		version platform.Version
		op      Operation
		want    string
	}{
		{platform.API31, GetFocusedTask, "getFocusedRootTaskInfo"},
		{platform.API30, GetFocusedTask, "getFocusedStackInfo"},
		{platform.API29, GetFocusedTask, "getFocusedStackInfo"},
		{platform.API31, ListTasksOnDisplay, "getAllRootTaskInfosOnDisplay"},
		{platform.API30, ListTasksOnDisplay, "getAllStackInfosOnDisplay"},
	}

	for _, tt := range tests {
		r := NewResolver(all, tt.version, AndroidTable())
		b, err := r.Resolve(tt.op)
		if err != nil {
			t.Fatalf("Resolve(%s) on %s error: %v", tt.op, tt.version, err)
		}
		if b.Name != tt.want {
			t.Fatalf("Resolve(%s) on %s = %q, want %q", tt.op, tt.version, b.Name, tt.want)
		}
	}
}

func TestResolve_SkipsCandidatesTheServiceLacks(t *testing.T) {
	svc := serviceWith("getAllStackInfos")
	r := NewResolver(svc, platform.API31, AndroidTable())

	b, err := r.Resolve(ListAllTasks)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if b.Name != "getAllStackInfos" {
		t.Fatalf("Resolve() = %q, want getAllStackInfos", b.Name)
	}
}

func TestResolve_UnsupportedOnAndroid10(t *testing.T) {
	svc := serviceWith("getAllStackInfosOnDisplay")
	r := NewResolver(svc, platform.API29, AndroidTable())

	if _, err := r.Resolve(ListTasksOnDisplay); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Resolve() error = %v, want ErrUnsupported", err)
	}
}

func TestResolve_IsMemoizedIncludingFailures(t *testing.T) {
	svc := serviceWith("removeTask")
	r := NewResolver(svc, platform.API31, AndroidTable())

	first, err := r.Resolve(RemoveTask)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	second, _ := r.Resolve(RemoveTask)
	if first != second {
		t.Fatal("Resolve() returned different bindings for the same operation")
	}

	_, err1 := r.Resolve(FocusTask)
	lookups := svc.lookups.Load()
	_, err2 := r.Resolve(FocusTask)
	if err1 == nil || err2 == nil {
		t.Fatal("Resolve(FocusTask) succeeded, want failure")
	}
	if svc.lookups.Load() != lookups {
		t.Fatal("failed resolution was not cached")
	}

	// A method appearing later does not revive a cached failure.
	svc.methods["setFocusedTask"] = true
	if _, err := r.Resolve(FocusTask); err == nil {
		t.Fatal("cached failure was re-resolved")
	}
}

func TestResolve_ConcurrentFirstUse(t *testing.T) {
	svc := serviceWith("getAllRootTaskInfos")
	r := NewResolver(svc, platform.API31, AndroidTable())

	var observed atomic.Int32
	r.SetObserver(func(Operation, string, error) { observed.Add(1) })

	var wg sync.WaitGroup
	names := make([]string, 16)
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := r.Resolve(ListAllTasks)
			if err == nil {
				names[i] = b.Name
			}
		}(i)
	}
	wg.Wait()

	for i, n := range names {
		if n != "getAllRootTaskInfos" {
			t.Fatalf("goroutine %d resolved %q", i, n)
		}
	}
	if observed.Load() != 1 {
		t.Fatalf("observer called %d times, want 1", observed.Load())
	}
}

func TestResolved(t *testing.T) {
	r := NewResolver(serviceWith("removeTask"), platform.API31, AndroidTable())
	r.Resolve(RemoveTask)
	r.Resolve(FocusTask)

	got := r.Resolved()
	if len(got) != 2 {
		t.Fatalf("Resolved() = %+v, want 2 entries", got)
	}
	if got[0].Operation != FocusTask || got[0].Error == "" {
		t.Fatalf("Resolved()[0] = %+v, want failed focus-task", got[0])
	}
	if got[1].Operation != RemoveTask || got[1].Name != "removeTask" {
		t.Fatalf("Resolved()[1] = %+v, want removeTask", got[1])
	}
}
