package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/1broseidon/taskmirror/internal/adb"
	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/config"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/simhost"
	"github.com/1broseidon/taskmirror/internal/x11"
)

// OpenHost connects to the configured host and returns it with the
// capability table that maps task operations onto its entry points.
func OpenHost(ctx context.Context, cfg *config.Config, logger *slog.Logger) (platform.Host, capability.Table, error) {
	switch cfg.Host {
	case config.HostADB:
		runner := &adb.ExecRunner{
			Path:    cfg.ADB.Path,
			Serial:  cfg.ADB.Serial,
			Timeout: cfg.ADB.CommandTimeout,
		}
		h, err := adb.New(ctx, runner, adb.Options{SDKOverride: cfg.ADB.SDKOverride, Logger: logger})
		if err != nil {
			return nil, nil, err
		}
		return h, capability.AndroidTable(), nil

	case config.HostX11:
		h, err := x11.New(cfg.X11.Display, logger)
		if err != nil {
			return nil, nil, err
		}
		return h, x11.CapabilityTable(), nil

	case config.HostSim:
		return NewSimHost(cfg.Sim), capability.AndroidTable(), nil
	}
	return nil, nil, fmt.Errorf("unknown host %q", cfg.Host)
}

// NewSimHost builds the simulated host, overriding its default display with
// any configured ones.
func NewSimHost(cfg config.SimConfig) *simhost.Host {
	h := simhost.NewDefault(platform.Version(cfg.Version))
	for _, d := range cfg.Displays {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("Simulated Display %d", d.ID)
		}
		h.SetDisplay(platform.DisplayInfo{
			ID:       d.ID,
			Name:     name,
			Size:     platform.Size{Width: d.Width, Height: d.Height},
			Rotation: platform.Rotation(d.Rotation),
		})
	}
	return h
}
