package x11

import (
	"fmt"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// windowRecord builds the task record of a client window. Geometry-derived
// attributes are read eagerly; window-manager properties are read on access
// by the base layer, so a window vanishing mid-read surfaces as an access
// failure.
func (h *Host) windowRecord(win xproto.Window, monitors []Monitor) *attr.Record {
	values := map[string]any{
		"taskId":  int(win),
		"visible": !h.conn.IsHidden(win) && h.conn.OnCurrentDesktop(win),
	}

	if rect, ok := h.conn.WindowRect(win); ok {
		values["bounds"] = rect
		if m, ok := monitorAt(monitors, rect.X+rect.Width/2, rect.Y+rect.Height/2); ok {
			values["displayId"] = m.ID
			values["configuration"] = h.monitorConfiguration(m)
		}
	}
	if comp, ok := h.conn.WindowComponent(win); ok {
		values["baseActivity"] = comp
		values["topActivity"] = comp
	}

	client := &attr.Fields{Type: TypeClientWindow, Values: values}
	return attr.NewRecord(client, &propertyLayer{conn: h.conn, win: win}).WithLogger(h.logger)
}

// propertyLayer reads EWMH properties of one window on demand.
type propertyLayer struct {
	conn *Connection
	win  xproto.Window
}

var propertyNames = []string{"title", "pid", "desktop", "lastActiveTime"}

func (p *propertyLayer) TypeName() string { return TypeWindow }

func (p *propertyLayer) Names() []string {
	return append([]string(nil), propertyNames...)
}

func (p *propertyLayer) Lookup(name string) (any, error) {
	switch name {
	case "title":
		title, err := p.conn.WindowTitle(p.win)
		if err != nil {
			return nil, p.propertyError("WM_NAME", err)
		}
		return title, nil
	case "pid":
		pid, err := ewmh.WmPidGet(p.conn.XUtil, p.win)
		if err != nil {
			return nil, p.propertyError("_NET_WM_PID", err)
		}
		return int(pid), nil
	case "desktop":
		d, err := ewmh.WmDesktopGet(p.conn.XUtil, p.win)
		if err != nil {
			return nil, p.propertyError("_NET_WM_DESKTOP", err)
		}
		if d == stickyDesktop {
			return -1, nil
		}
		return int(d), nil
	case "lastActiveTime":
		t, err := ewmh.WmUserTimeGet(p.conn.XUtil, p.win)
		if err != nil {
			return nil, p.propertyError("_NET_WM_USER_TIME", err)
		}
		return int64(t), nil
	}
	return nil, attr.ErrNotFound
}

// propertyError maps a failed property read to ErrNotFound while the window
// still exists, since clients may leave any property unset.
func (p *propertyLayer) propertyError(prop string, err error) error {
	if _, gerr := xproto.GetGeometry(p.conn.XUtil.Conn(), xproto.Drawable(p.win)).Reply(); gerr == nil {
		return attr.ErrNotFound
	}
	return fmt.Errorf("%s of window %d: %w", prop, p.win, err)
}
