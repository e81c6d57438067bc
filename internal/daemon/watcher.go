package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/platform"
)

// WatcherConfig holds configuration for the watcher.
type WatcherConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Watcher feeds display and configuration notifications into the tracker.
// Hosts with an event stream are followed directly; the rest are polled.
type Watcher struct {
	interval   time.Duration
	intervalCh chan time.Duration
	tracker    *display.Tracker
	host       platform.Host
	logger     *slog.Logger

	// displayMissing suppresses repeated invalidations while polling a
	// display that stays absent.
	displayMissing bool
}

// NewWatcher creates a watcher for host feeding tracker.
func NewWatcher(cfg WatcherConfig, tracker *display.Tracker, host platform.Host) *Watcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		interval:   interval,
		intervalCh: make(chan time.Duration, 1),
		tracker:    tracker,
		host:       host,
		logger:     logger,
	}
}

// SetInterval changes the polling interval of a running watcher.
func (w *Watcher) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-w.intervalCh:
	default:
	}
	w.intervalCh <- d
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if src, ok := w.host.(platform.EventSource); ok {
		events, err := src.Events(ctx)
		if err != nil {
			w.logger.Warn("host events unavailable, polling instead", "error", err)
		} else {
			w.logger.Info("watcher following host events")
			if w.follow(ctx, events) {
				return
			}
			w.logger.Warn("host event stream ended, polling instead")
		}
	}
	w.poll(ctx)
}

// follow forwards events until ctx is done (true) or the stream closes
// (false).
func (w *Watcher) follow(ctx context.Context, events <-chan platform.Event) bool {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return true
		case ev, ok := <-events:
			if !ok {
				return ctx.Err() != nil
			}
			w.dispatch(ev)
		case <-w.intervalCh:
			// Interval only matters when polling.
		}
	}
}

func (w *Watcher) dispatch(ev platform.Event) {
	defer func() {
		if err := recover(); err != nil {
			w.logger.Error("watcher panic recovered", "event", ev.Kind.String(), "error", err)
		}
	}()
	w.tracker.Handle(ev)
}

func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("watcher polling", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return
		case d := <-w.intervalCh:
			w.interval = d
			ticker.Reset(d)
			w.logger.Info("watcher interval changed", "interval", d)
		case <-ticker.C:
			w.PollNow()
		}
	}
}

// PollNow runs one pass over both notification channels.
func (w *Watcher) PollNow() {
	defer func() {
		if err := recover(); err != nil {
			w.logger.Error("watcher panic recovered", "error", err)
		}
	}()

	// One descriptor per pass feeds both channels.
	info, present := w.host.Displays().DisplayInfo(w.tracker.DisplayID())
	if present || !w.displayMissing {
		w.tracker.Observe(info, present)
	}
	w.displayMissing = !present
	if !present {
		return
	}

	if src, ok := w.host.(platform.ConfigurationSource); ok {
		if cfg, ok := src.Configuration(info); ok {
			w.tracker.HandleConfigurationChanged(cfg)
		}
	}
}
