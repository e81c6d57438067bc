package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/config"
	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/logging"
	"github.com/1broseidon/taskmirror/internal/metrics"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/task"
)

// Daemon owns one host connection and the mirroring session on its tracked
// display.
type Daemon struct {
	cfgPath string
	cfgMu   sync.RWMutex
	cfg     *config.Config

	logger    *logging.Logger
	host      platform.Host
	tasks     *task.Controller
	tracker   *display.Tracker
	session   *Session
	watcher   *Watcher
	metrics   *metrics.Metrics
	startTime time.Time
}

// New wires a daemon around an open host. cfgPath is reloaded on RELOAD and
// on file changes; it may be empty.
func New(cfg *config.Config, cfgPath string, host platform.Host, table capability.Table, logger *logging.Logger) *Daemon {
	m := metrics.New()

	resolver := capability.NewResolver(host.Tasks(), host.Version(), table)
	resolver.SetObserver(m.ObserveResolution)

	session := NewSession(logger.Logger)
	tracker := display.NewTracker(cfg.DisplayID, host.Displays(), session,
		display.WithLogger(logger.Logger),
		display.WithObserver(m.ObserveInvalidation),
	)

	d := &Daemon{
		cfgPath: cfgPath,
		cfg:     cfg,
		logger:  logger,
		host:    host,
		tasks: task.NewController(resolver,
			task.WithLogger(logger.Logger),
			task.WithObserver(m),
		),
		tracker: tracker,
		session: session,
		metrics: m,
	}
	d.watcher = NewWatcher(WatcherConfig{Interval: cfg.PollInterval, Logger: logger.Logger}, tracker, host)
	return d
}

func (d *Daemon) Tasks() *task.Controller { return d.tasks }
func (d *Daemon) Tracker() *display.Tracker { return d.tracker }
func (d *Daemon) Session() *Session { return d.session }
func (d *Daemon) Metrics() *metrics.Metrics { return d.metrics }
func (d *Daemon) Watcher() *Watcher { return d.watcher }
func (d *Daemon) Host() platform.Host { return d.host }

// Config returns the current config (thread-safe)
func (d *Daemon) Config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// Run serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.startTime = time.Now()
	cfg := d.Config()

	if !d.tracker.Prime() {
		d.logger.Warn("tracked display not found", "display_id", cfg.DisplayID)
	}
	d.metrics.SetDisplayState(d.tracker.State())
	d.logger.Info("session started",
		"session", d.session.ID,
		"host", d.host.Name(),
		"version", d.host.Version().String(),
		"display_id", cfg.DisplayID,
	)

	server, err := ipc.NewServer(ipc.Deps{
		Tasks:    d.tasks,
		Tracker:  d.tracker,
		Displays: d.host.Displays(),
		Status:   d.Status,
		Reload:   d.Reload,
		Logger:   d.logger.Logger,
	})
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := d.metrics.Serve(ctx, cfg.Metrics.Listen, d.logger.Logger); err != nil {
				d.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	if d.cfgPath != "" {
		reload := func() {
			if err := d.Reload(); err != nil {
				d.logger.Warn("config reload failed", "error", err)
			}
		}
		if err := watchConfig(ctx, d.cfgPath, reload, d.logger.Logger); err != nil {
			d.logger.Warn("config watcher unavailable", "error", err)
		}
	}

	go d.watcher.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("session ended", "session", d.session.ID, "generation", d.session.Generation())
			return nil
		case <-d.session.Invalidated():
			d.restartCapture()
		}
	}
}

// restartCapture logs the geometry the next capture starts with.
func (d *Daemon) restartCapture() {
	state := d.tracker.State()
	d.logger.Info("capture restart",
		"session", d.session.ID,
		"generation", d.session.Generation(),
		"size", sizeOf(state),
		"rotation", state.Rotation.String(),
	)
}

// Status reports the session for GET_STATUS.
func (d *Daemon) Status() ipc.StatusData {
	status := ipc.StatusData{
		SessionID:  d.session.ID,
		Host:       d.host.Name(),
		Version:    d.host.Version().String(),
		DisplayID:  d.tracker.DisplayID(),
		Display:    d.tracker.State(),
		Generation: d.session.Generation(),
	}
	if !d.startTime.IsZero() {
		status.UptimeSeconds = int64(time.Since(d.startTime).Seconds())
	}
	for _, s := range d.tasks.Resolver().Resolved() {
		status.Capabilities = append(status.Capabilities, ipc.CapabilityData{
			Operation: string(s.Operation),
			Method:    s.Name,
			Error:     s.Error,
		})
	}
	return status
}

// Reload re-reads the config file and applies the settings that can change
// at runtime: log level and poll interval. Host and display changes are
// reported and wait for a restart.
func (d *Daemon) Reload() error {
	if d.cfgPath == "" {
		return fmt.Errorf("no config file to reload")
	}
	res, err := config.LoadFromPath(d.cfgPath)
	if err != nil {
		return err
	}
	next := res.Config

	d.cfgMu.Lock()
	prev := d.cfg
	d.cfg = next
	d.cfgMu.Unlock()

	d.logger.SetLevel(next.Logging.Level)
	if next.PollInterval != prev.PollInterval {
		d.watcher.SetInterval(next.PollInterval)
	}
	for _, key := range restartKeys(prev, next) {
		d.logger.Warn("config change requires restart", "key", key)
	}
	d.logger.Info("config reloaded", "path", d.cfgPath)
	return nil
}

func restartKeys(prev, next *config.Config) []string {
	var keys []string
	if prev.Host != next.Host {
		keys = append(keys, "host")
	}
	if prev.DisplayID != next.DisplayID {
		keys = append(keys, "display_id")
	}
	if prev.ADB != next.ADB {
		keys = append(keys, "adb")
	}
	if prev.X11 != next.X11 {
		keys = append(keys, "x11")
	}
	if prev.Metrics != next.Metrics {
		keys = append(keys, "metrics")
	}
	if prev.Logging.File != next.Logging.File {
		keys = append(keys, "logging.file")
	}
	return keys
}

// Close releases the host connection.
func (d *Daemon) Close() error {
	return d.host.Close()
}

func sizeOf(s display.State) string {
	if !s.SizeKnown {
		return "unknown"
	}
	return s.Size.String()
}
