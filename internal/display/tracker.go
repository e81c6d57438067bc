// Package display tracks the size and rotation of the display being mirrored
// and signals the capture side when either changes.
package display

import (
	"log/slog"
	"sync"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/platform"
)

// Invalidator is the capture pipeline's "restart capture" hook.
type Invalidator interface {
	Invalidate()
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func()

func (f InvalidatorFunc) Invalidate() { f() }

// State is the tracked configuration of one display. A zero SizeKnown means
// the size is unknown, and an unknown size equals only another unknown size.
type State struct {
	Size      platform.Size     `json:"size"`
	SizeKnown bool              `json:"size_known"`
	Rotation  platform.Rotation `json:"rotation"`
}

// SameSize compares sizes by value with unknown equal only to unknown.
func (s State) SameSize(o State) bool {
	if !s.SizeKnown || !o.SizeKnown {
		return s.SizeKnown == o.SizeKnown
	}
	return s.Size == o.Size
}

// Channel names the notification that caused an invalidation.
type Channel string

const (
	ChannelDisplay       Channel = "display"
	ChannelConfiguration Channel = "configuration"
)

// Observer is told about every invalidation with the state that caused it.
type Observer func(ch Channel, s State)

// Tracker holds the state of one display for the current session. State is
// checked and set under the lock; Invalidate is called after unlocking so a
// slow capture restart never blocks notifications.
type Tracker struct {
	displayID int
	displays  platform.DisplayService
	inv       Invalidator
	logger    *slog.Logger
	observer  Observer

	mu    sync.Mutex
	state State
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithObserver installs an invalidation observer.
func WithObserver(o Observer) Option {
	return func(t *Tracker) { t.observer = o }
}

// NewTracker tracks displayID, starting from the unknown state.
func NewTracker(displayID int, displays platform.DisplayService, inv Invalidator, opts ...Option) *Tracker {
	t := &Tracker{
		displayID: displayID,
		displays:  displays,
		inv:       inv,
		logger:    slog.Default(),
		state:     unknownState(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func unknownState() State {
	return State{Rotation: platform.RotationUnknown}
}

// DisplayID returns the tracked display.
func (t *Tracker) DisplayID() int { return t.displayID }

// State returns a snapshot of the tracked state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset forgets the tracked state, as at the start of a session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.state = unknownState()
	t.mu.Unlock()
}

// Prime seeds the state from the display service without invalidating. It
// returns false when the display does not exist.
func (t *Tracker) Prime() bool {
	info, ok := t.displays.DisplayInfo(t.displayID)
	t.mu.Lock()
	defer t.mu.Unlock()
	if !ok {
		t.state = unknownState()
		return false
	}
	t.state = State{Size: info.Size, SizeKnown: true, Rotation: info.Rotation}
	return true
}

// HandleDisplayChanged processes a display-changed notification. It reports
// whether the capture was invalidated.
func (t *Tracker) HandleDisplayChanged(displayID int) bool {
	if displayID != t.displayID {
		return false
	}
	info, ok := t.displays.DisplayInfo(displayID)
	return t.Observe(info, ok)
}

// Observe applies a descriptor of the tracked display that the caller has
// already fetched. ok false means the display is absent. It reports whether
// the capture was invalidated.
func (t *Tracker) Observe(info platform.DisplayInfo, ok bool) bool {
	displayID := t.displayID

	t.mu.Lock()
	if !ok {
		t.state.Size = platform.Size{}
		t.state.SizeKnown = false
		snapshot := t.state
		t.mu.Unlock()

		t.logger.Warn("tracked display disappeared", "display_id", displayID)
		t.invalidate(ChannelDisplay, snapshot)
		return true
	}

	next := t.state
	next.Size = info.Size
	next.SizeKnown = true
	if t.state.SameSize(next) {
		t.mu.Unlock()
		return false
	}
	prev := t.state
	t.state = next
	t.mu.Unlock()

	t.logger.Info("display size changed",
		"display_id", displayID,
		"from", sizeString(prev),
		"to", info.Size.String(),
	)
	t.invalidate(ChannelDisplay, next)
	return true
}

// HandleConfigurationChanged processes a configuration-changed notification
// for the tracked display. Rotation changes invalidate; bounds are logged
// only. It reports whether the capture was invalidated.
func (t *Tracker) HandleConfigurationChanged(cfg attr.Source) bool {
	wc, ok := attr.Sub(cfg, "windowConfiguration")
	if !ok {
		t.logger.Debug("configuration without window configuration ignored")
		return false
	}
	if b, ok := attr.Get(wc, "mBounds"); ok {
		t.logger.Debug("configuration bounds", "display_id", t.displayID, "bounds", b)
	}
	r, ok := attr.Int(wc, "mDisplayRotation")
	if !ok {
		return false
	}
	rotation := platform.Rotation(r)
	if !rotation.Valid() {
		t.logger.Warn("ignoring invalid rotation", "display_id", t.displayID, "rotation", r)
		return false
	}

	t.mu.Lock()
	if t.state.Rotation == rotation {
		t.mu.Unlock()
		return false
	}
	prev := t.state.Rotation
	t.state.Rotation = rotation
	snapshot := t.state
	t.mu.Unlock()

	t.logger.Info("display rotation changed",
		"display_id", t.displayID,
		"from", prev.String(),
		"to", rotation.String(),
	)
	t.invalidate(ChannelConfiguration, snapshot)
	return true
}

// Handle dispatches a host event to the matching channel.
func (t *Tracker) Handle(ev platform.Event) bool {
	switch ev.Kind {
	case platform.DisplayChanged:
		return t.HandleDisplayChanged(ev.DisplayID)
	case platform.ConfigurationChanged:
		if ev.DisplayID != t.displayID {
			return false
		}
		return t.HandleConfigurationChanged(ev.Configuration)
	}
	return false
}

func (t *Tracker) invalidate(ch Channel, s State) {
	if t.observer != nil {
		t.observer(ch, s)
	}
	if t.inv != nil {
		t.inv.Invalidate()
	}
}

func sizeString(s State) string {
	if !s.SizeKnown {
		return "unknown"
	}
	return s.Size.String()
}
