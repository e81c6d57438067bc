package x11

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Entry-point names of the X11 task service.
const (
	MethodActiveWindow        = "activeWindow"
	MethodClientList          = "clientList"
	MethodCloseWindow         = "closeWindow"
	MethodActivateWindow      = "activateWindow"
	MethodMoveWindowToMonitor = "moveWindowToMonitor"
)

// Record type names of window records.
const (
	TypeClientWindow = "x11.ClientWindow"
	TypeWindow       = "x11.Window"
	TypeMonitor      = "x11.MonitorConfiguration"
)

// CapabilityTable maps task operations to X11 entry points. X11 has no
// per-display client listing, so that operation is always served by
// filtering the full list.
func CapabilityTable() capability.Table {
	return capability.Table{
		capability.GetFocusedTask:    {{Name: MethodActiveWindow}},
		capability.ListAllTasks:      {{Name: MethodClientList}},
		capability.RemoveTask:        {{Name: MethodCloseWindow}},
		capability.FocusTask:         {{Name: MethodActivateWindow}},
		capability.MoveTaskToDisplay: {{Name: MethodMoveWindowToMonitor}},
	}
}

// Host exposes an X11 desktop as a task host: client windows are tasks and
// RandR CRTCs are displays.
type Host struct {
	conn   *Connection
	logger *slog.Logger

	mu       sync.Mutex
	monitors map[int]Monitor // last answer of DisplayInfo
}

var (
	_ platform.Host                = (*Host)(nil)
	_ platform.ConfigurationSource = (*Host)(nil)
	_ platform.EventSource         = (*Host)(nil)
)

// New connects to the named display, $DISPLAY when empty.
func New(display string, logger *slog.Logger) (*Host, error) {
	conn, err := NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{conn: conn, logger: logger}, nil
}

func (h *Host) Name() string { return "x11" }

// Version is Latest: window records use the current field names.
func (h *Host) Version() platform.Version { return platform.Latest }

func (h *Host) Tasks() platform.TaskService { return h }

func (h *Host) Displays() platform.DisplayService { return h }

func (h *Host) Close() error {
	h.conn.Close()
	return nil
}

// Method implements platform.TaskService.
func (h *Host) Method(name string) (platform.Method, bool) {
	var m platform.Method
	switch name {
	case MethodActiveWindow:
		m = h.activeWindow
	case MethodClientList:
		m = h.clientList
	case MethodCloseWindow:
		m = h.closeWindow
	case MethodActivateWindow:
		m = h.activateWindow
	case MethodMoveWindowToMonitor:
		m = h.moveWindowToMonitor
	default:
		return nil, false
	}
	return m, true
}

func (h *Host) activeWindow(...int) (any, error) {
	win, err := h.conn.GetActiveWindow()
	if err != nil || win == 0 {
		// No _NET_ACTIVE_WINDOW means nothing is focused.
		return nil, nil
	}
	monitors, err := h.conn.GetMonitors()
	if err != nil {
		return nil, err
	}
	return attr.Source(h.windowRecord(win, monitors)), nil
}

func (h *Host) clientList(...int) (any, error) {
	clients, err := h.conn.ClientWindows()
	if err != nil {
		return nil, err
	}
	monitors, err := h.conn.GetMonitors()
	if err != nil {
		return nil, err
	}
	out := make([]attr.Source, 0, len(clients))
	for _, win := range clients {
		out = append(out, h.windowRecord(win, monitors))
	}
	return out, nil
}

// closeWindow reports false for windows that are not managed clients.
func (h *Host) closeWindow(args ...int) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing window id")
	}
	win := xproto.Window(args[0])
	if !h.isClient(win) {
		return false, nil
	}
	if err := h.conn.CloseWindow(win); err != nil {
		return nil, err
	}
	return true, nil
}

func (h *Host) activateWindow(args ...int) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing window id")
	}
	return nil, h.conn.FocusWindow(xproto.Window(args[0]))
}

// moveWindowToMonitor keeps the window's offset within its monitor and
// shrinks it to fit the target.
func (h *Host) moveWindowToMonitor(args ...int) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("missing window or monitor id")
	}
	win := xproto.Window(args[0])
	monitors, err := h.conn.GetMonitors()
	if err != nil {
		return nil, err
	}
	target, ok := monitorByID(monitors, args[1])
	if !ok {
		return nil, fmt.Errorf("monitor %d not found", args[1])
	}
	rect, ok := h.conn.WindowRect(win)
	if !ok {
		return nil, fmt.Errorf("window %d geometry unavailable", args[0])
	}
	source, ok := monitorAt(monitors, rect.X+rect.Width/2, rect.Y+rect.Height/2)
	if !ok {
		source = Monitor{Bounds: platform.Rect{Width: rect.Width, Height: rect.Height}}
	}
	return nil, h.conn.MoveResizeWindow(win, relocate(rect, source.Bounds, h.conn.UsableBounds(target)))
}

// relocate translates r from one area to another, clamping it inside dst.
func relocate(r, src, dst platform.Rect) platform.Rect {
	out := platform.Rect{
		X:      dst.X + (r.X - src.X),
		Y:      dst.Y + (r.Y - src.Y),
		Width:  min(r.Width, dst.Width),
		Height: min(r.Height, dst.Height),
	}
	out.X = max(dst.X, min(out.X, dst.X+dst.Width-out.Width))
	out.Y = max(dst.Y, min(out.Y, dst.Y+dst.Height-out.Height))
	return out
}

func (h *Host) isClient(win xproto.Window) bool {
	clients, err := ewmh.ClientListGet(h.conn.XUtil)
	if err != nil {
		return false
	}
	for _, c := range clients {
		if c == win {
			return true
		}
	}
	return false
}

// DisplayInfo implements platform.DisplayService.
func (h *Host) DisplayInfo(displayID int) (platform.DisplayInfo, bool) {
	monitors, err := h.conn.GetMonitors()
	if err != nil {
		h.logger.Warn("failed to query monitors", "error", err)
		return platform.DisplayInfo{}, false
	}
	m, ok := monitorByID(monitors, displayID)

	h.mu.Lock()
	if h.monitors == nil {
		h.monitors = make(map[int]Monitor)
	}
	if ok {
		h.monitors[displayID] = m
	} else {
		delete(h.monitors, displayID)
	}
	h.mu.Unlock()

	if !ok {
		return platform.DisplayInfo{}, false
	}
	return m.Info(), true
}

// Configuration implements platform.ConfigurationSource. The monitor seen by
// the DisplayInfo call that produced info supplies the origin; without one
// the bounds start at the origin.
func (h *Host) Configuration(info platform.DisplayInfo) (attr.Source, bool) {
	return h.monitorConfiguration(h.monitorFor(info)), true
}

func (h *Host) monitorFor(info platform.DisplayInfo) Monitor {
	h.mu.Lock()
	m, ok := h.monitors[info.ID]
	h.mu.Unlock()
	if ok && m.Info() == info {
		return m
	}
	return Monitor{
		ID:       info.ID,
		Name:     info.Name,
		Bounds:   platform.Rect{Width: info.Size.Width, Height: info.Size.Height},
		Rotation: info.Rotation,
	}
}

func (h *Host) monitorConfiguration(m Monitor) *attr.Record {
	wc := attr.NewRecord(&attr.Fields{
		Type: TypeMonitor,
		Values: map[string]any{
			"mActivityType":    platform.ActivityTypeStandard,
			"mDisplayRotation": int(m.Rotation),
			"mBounds":          m.Bounds,
			"mAppBounds":       h.conn.UsableBounds(m),
			"name":             m.Name,
		},
	})
	return attr.NewRecord(&attr.Fields{
		Type:   platform.TypeConfiguration,
		Values: map[string]any{"windowConfiguration": wc},
	})
}

// Events implements platform.EventSource.
func (h *Host) Events(ctx context.Context) (<-chan platform.Event, error) {
	return watchRandR(ctx, h, h.conn.Display, h.logger)
}
