package x11

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
)

// watchRandR opens a dedicated connection subscribed to RandR screen and CRTC
// notifications and turns each into a display-changed event per monitor,
// followed by configuration-changed events. Monitors that disappear get a
// final display-changed event. Closing the connection on ctx cancellation
// unblocks the reader.
func watchRandR(ctx context.Context, h *Host, display string, logger *slog.Logger) (<-chan platform.Event, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to open event connection: %w", err)
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("randr init failed: %w", err)
	}
	root := xproto.Setup(conn).DefaultScreen(conn).Root
	mask := uint16(randr.NotifyMaskScreenChange | randr.NotifyMaskCrtcChange)
	if err := randr.SelectInputChecked(conn, root, mask).Check(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to select randr input: %w", err)
	}

	out := make(chan platform.Event, 16)
	known := make(map[int]bool)
	if monitors, err := h.conn.GetMonitors(); err == nil {
		for _, m := range monitors {
			known[m.ID] = true
		}
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(out)
		for {
			ev, xerr := conn.WaitForEvent()
			if ev == nil && xerr == nil {
				return
			}
			if xerr != nil {
				logger.Debug("randr connection error", "error", xerr)
				continue
			}
			switch ev.(type) {
			case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
			default:
				continue
			}

			monitors, err := h.conn.GetMonitors()
			if err != nil {
				logger.Warn("failed to refresh monitors", "error", err)
				continue
			}
			current := make(map[int]bool, len(monitors))
			for _, m := range monitors {
				current[m.ID] = true
			}

			var batch []platform.Event
			for id := range known {
				if !current[id] {
					batch = append(batch, platform.Event{Kind: platform.DisplayChanged, DisplayID: id})
				}
			}
			for _, m := range monitors {
				batch = append(batch, platform.Event{Kind: platform.DisplayChanged, DisplayID: m.ID})
			}
			for _, m := range monitors {
				batch = append(batch, platform.Event{
					Kind:          platform.ConfigurationChanged,
					DisplayID:     m.ID,
					Configuration: h.monitorConfiguration(m),
				})
			}
			known = current

			for _, e := range batch {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
