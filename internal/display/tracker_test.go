package display

import (
	"bytes"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/platform"
)

type fakeDisplays struct {
	mu    sync.Mutex
	infos map[int]platform.DisplayInfo
}

func (f *fakeDisplays) set(id int, w, h int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infos == nil {
		f.infos = map[int]platform.DisplayInfo{}
	}
	f.infos[id] = platform.DisplayInfo{ID: id, Size: platform.Size{Width: w, Height: h}}
}

func (f *fakeDisplays) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.infos, id)
}

func (f *fakeDisplays) DisplayInfo(id int) (platform.DisplayInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.infos[id]
	return info, ok
}

type counter struct{ n atomic.Int32 }

func (c *counter) Invalidate() { c.n.Add(1) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func rotationConfig(r platform.Rotation) attr.Source {
	return platform.AndroidConfiguration(platform.ActivityTypeStandard, r, platform.Rect{Width: 1080, Height: 1920})
}

func TestHandleDisplayChanged_TwoStepScenario(t *testing.T) {
	displays := &fakeDisplays{}
	inv := &counter{}
	tr := NewTracker(0, displays, inv, WithLogger(quietLogger()))

	displays.set(0, 1080, 1920)
	if !tr.HandleDisplayChanged(0) {
		t.Fatal("first observation did not invalidate")
	}
	if got := inv.n.Load(); got != 1 {
		t.Fatalf("invalidations = %d, want 1", got)
	}
	if s := tr.State(); !s.SizeKnown || s.Size != (platform.Size{Width: 1080, Height: 1920}) {
		t.Fatalf("State() = %+v", s)
	}

	displays.set(0, 1920, 1080)
	if !tr.HandleDisplayChanged(0) {
		t.Fatal("size change did not invalidate")
	}
	if got := inv.n.Load(); got != 2 {
		t.Fatalf("invalidations = %d, want 2", got)
	}
	if s := tr.State(); s.Size != (platform.Size{Width: 1920, Height: 1080}) {
		t.Fatalf("State().Size = %v", s.Size)
	}
}

func TestHandleDisplayChanged_SameSizeDoesNotInvalidate(t *testing.T) {
	displays := &fakeDisplays{}
	displays.set(0, 1080, 1920)
	inv := &counter{}
	tr := NewTracker(0, displays, inv, WithLogger(quietLogger()))

	tr.HandleDisplayChanged(0)
	for i := 0; i < 3; i++ {
		if tr.HandleDisplayChanged(0) {
			t.Fatal("unchanged size invalidated")
		}
	}
	if got := inv.n.Load(); got != 1 {
		t.Fatalf("invalidations = %d, want 1", got)
	}
}

func TestHandleDisplayChanged_MissingDescriptorAlwaysInvalidates(t *testing.T) {
	displays := &fakeDisplays{}
	inv := &counter{}
	tr := NewTracker(0, displays, inv, WithLogger(quietLogger()))

	// Unknown to unknown still invalidates when the descriptor is absent.
	tr.HandleDisplayChanged(0)
	tr.HandleDisplayChanged(0)
	if got := inv.n.Load(); got != 2 {
		t.Fatalf("invalidations = %d, want 2", got)
	}

	displays.set(0, 720, 1280)
	tr.HandleDisplayChanged(0)
	displays.remove(0)
	tr.HandleDisplayChanged(0)
	if s := tr.State(); s.SizeKnown {
		t.Fatalf("State() = %+v, want unknown size", s)
	}
	if got := inv.n.Load(); got != 4 {
		t.Fatalf("invalidations = %d, want 4", got)
	}
}

func TestHandleDisplayChanged_IgnoresOtherDisplays(t *testing.T) {
	displays := &fakeDisplays{}
	displays.set(1, 800, 600)
	inv := &counter{}
	tr := NewTracker(0, displays, inv, WithLogger(quietLogger()))

	if tr.HandleDisplayChanged(1) {
		t.Fatal("other display invalidated")
	}
	if inv.n.Load() != 0 {
		t.Fatal("Invalidate() called for another display")
	}
}

func TestHandleConfigurationChanged_Rotation(t *testing.T) {
	inv := &counter{}
	tr := NewTracker(0, &fakeDisplays{}, inv, WithLogger(quietLogger()))

	if !tr.HandleConfigurationChanged(rotationConfig(platform.Rotation0)) {
		t.Fatal("first rotation did not invalidate")
	}
	if tr.HandleConfigurationChanged(rotationConfig(platform.Rotation0)) {
		t.Fatal("same rotation invalidated")
	}
	if !tr.HandleConfigurationChanged(rotationConfig(platform.Rotation90)) {
		t.Fatal("rotation change did not invalidate")
	}
	if got := inv.n.Load(); got != 2 {
		t.Fatalf("invalidations = %d, want 2", got)
	}
	if got := tr.State().Rotation; got != platform.Rotation90 {
		t.Fatalf("State().Rotation = %v, want 90", got)
	}
}

func TestHandleConfigurationChanged_BoundsOnlyAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	inv := &counter{}
	tr := NewTracker(0, &fakeDisplays{}, inv, WithLogger(logger))
	tr.HandleConfigurationChanged(rotationConfig(platform.Rotation0))

	wide := platform.AndroidConfiguration(platform.ActivityTypeStandard, platform.Rotation0, platform.Rect{Width: 1920, Height: 1080})
	if tr.HandleConfigurationChanged(wide) {
		t.Fatal("bounds-only change invalidated")
	}
	if inv.n.Load() != 1 {
		t.Fatalf("invalidations = %d, want 1", inv.n.Load())
	}
	if !bytes.Contains(buf.Bytes(), []byte("configuration bounds")) {
		t.Fatalf("bounds not logged: %q", buf.String())
	}
}

func TestHandleConfigurationChanged_MalformedIgnored(t *testing.T) {
	inv := &counter{}
	tr := NewTracker(0, &fakeDisplays{}, inv, WithLogger(quietLogger()))

	empty := attr.NewRecord(&attr.Fields{Type: platform.TypeConfiguration})
	if tr.HandleConfigurationChanged(empty) || tr.HandleConfigurationChanged(nil) {
		t.Fatal("malformed configuration invalidated")
	}
	if tr.HandleConfigurationChanged(rotationConfig(platform.Rotation(7))) {
		t.Fatal("invalid rotation invalidated")
	}
	if inv.n.Load() != 0 {
		t.Fatal("Invalidate() called")
	}
}

func TestInvalidateHappensAfterStateUpdate(t *testing.T) {
	displays := &fakeDisplays{}
	displays.set(0, 1080, 1920)
	var tr *Tracker
	var seen State
	tr = NewTracker(0, displays, InvalidatorFunc(func() {
		// State() takes the lock; this deadlocks if Invalidate runs under it.
		seen = tr.State()
	}), WithLogger(quietLogger()))

	tr.HandleDisplayChanged(0)
	if !seen.SizeKnown || seen.Size.Width != 1080 {
		t.Fatalf("state seen from Invalidate() = %+v", seen)
	}
}

func TestPrimeAndReset(t *testing.T) {
	displays := &fakeDisplays{}
	displays.set(0, 1080, 1920)
	inv := &counter{}
	var observed []Channel
	tr := NewTracker(0, displays, inv, WithLogger(quietLogger()), WithObserver(func(ch Channel, _ State) {
		observed = append(observed, ch)
	}))

	if !tr.Prime() {
		t.Fatal("Prime() = false")
	}
	if tr.HandleDisplayChanged(0) {
		t.Fatal("primed size invalidated")
	}
	tr.Reset()
	if s := tr.State(); s.SizeKnown || s.Rotation != platform.RotationUnknown {
		t.Fatalf("State() after Reset = %+v", s)
	}
	if !tr.Handle(platform.Event{Kind: platform.DisplayChanged, DisplayID: 0}) {
		t.Fatal("first observation after reset did not invalidate")
	}
	if !tr.Handle(platform.Event{Kind: platform.ConfigurationChanged, DisplayID: 0, Configuration: rotationConfig(platform.Rotation0)}) {
		t.Fatal("configuration event did not invalidate")
	}
	if tr.Handle(platform.Event{Kind: platform.ConfigurationChanged, DisplayID: 3, Configuration: rotationConfig(platform.Rotation90)}) {
		t.Fatal("configuration event for another display invalidated")
	}
	if len(observed) != 2 || observed[0] != ChannelDisplay || observed[1] != ChannelConfiguration {
		t.Fatalf("observed = %v", observed)
	}
	if inv.n.Load() != 2 {
		t.Fatalf("invalidations = %d, want 2", inv.n.Load())
	}
}

func TestStateSameSize(t *testing.T) {
	unknown := State{}
	known := State{Size: platform.Size{Width: 1, Height: 1}, SizeKnown: true}
	if !unknown.SameSize(unknown) {
		t.Fatal("unknown != unknown")
	}
	if unknown.SameSize(known) || known.SameSize(unknown) {
		t.Fatal("unknown equals a known size")
	}
	zero := State{SizeKnown: true}
	if unknown.SameSize(zero) {
		t.Fatal("unknown equals a known zero size")
	}
}

func TestStateIsNeverTorn(t *testing.T) {
	displays := &fakeDisplays{}
	displays.set(0, 1080, 1920)
	tr := NewTracker(0, displays, &counter{}, WithLogger(quietLogger()))

	portrait := platform.Size{Width: 1080, Height: 1920}
	landscape := platform.Size{Width: 1920, Height: 1080}
	written := func(s State) bool {
		switch {
		case !s.SizeKnown:
			if s.Size != (platform.Size{}) {
				return false
			}
		case s.Size != portrait && s.Size != landscape:
			return false
		}
		switch s.Rotation {
		case platform.RotationUnknown, platform.Rotation0, platform.Rotation90:
			return true
		}
		return false
	}

	const rounds = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range rounds {
			switch i % 3 {
			case 0:
				displays.set(0, landscape.Width, landscape.Height)
			case 1:
				displays.remove(0)
			default:
				displays.set(0, portrait.Width, portrait.Height)
			}
			tr.HandleDisplayChanged(0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := range rounds {
			r := platform.Rotation0
			if i%2 == 1 {
				r = platform.Rotation90
			}
			tr.HandleConfigurationChanged(rotationConfig(r))
		}
	}()

	done := make(chan struct{})
	bad := make(chan State, 1)
	var readers sync.WaitGroup
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if s := tr.State(); !written(s) {
					select {
					case bad <- s:
					default:
					}
					return
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	readers.Wait()

	select {
	case s := <-bad:
		t.Fatalf("State() = %+v, never written", s)
	default:
	}
	// The last writes removed the display and set rotation 90.
	if s, want := tr.State(), (State{Rotation: platform.Rotation90}); s != want {
		t.Fatalf("final State() = %+v, want %+v", s, want)
	}
}
