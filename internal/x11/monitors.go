package x11

import (
	"fmt"

	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display. ID is the CRTC index.
type Monitor struct {
	ID       int
	Name     string
	Bounds   platform.Rect
	Rotation platform.Rotation
}

// Info converts the monitor to a display descriptor.
func (m Monitor) Info() platform.DisplayInfo {
	return platform.DisplayInfo{
		ID:       m.ID,
		Name:     m.Name,
		Size:     platform.Size{Width: m.Bounds.Width, Height: m.Bounds.Height},
		Rotation: m.Rotation,
	}
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor

	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		monitors = append(monitors, Monitor{
			ID:   i,
			Name: outputName,
			Bounds: platform.Rect{
				X:      int(crtcInfo.X),
				Y:      int(crtcInfo.Y),
				Width:  int(crtcInfo.Width),
				Height: int(crtcInfo.Height),
			},
			Rotation: rotationFromRandR(crtcInfo.Rotation),
		})
	}

	return monitors, nil
}

// rotationFromRandR maps the RandR rotation bitmask to quarter turns.
// Reflection bits are ignored.
func rotationFromRandR(r uint16) platform.Rotation {
	switch {
	case r&randr.RotationRotate90 != 0:
		return platform.Rotation90
	case r&randr.RotationRotate180 != 0:
		return platform.Rotation180
	case r&randr.RotationRotate270 != 0:
		return platform.Rotation270
	}
	return platform.Rotation0
}

// monitorAt returns the monitor containing the point.
func monitorAt(monitors []Monitor, x, y int) (Monitor, bool) {
	for _, m := range monitors {
		if m.Bounds.Contains(x, y) {
			return m, true
		}
	}
	return Monitor{}, false
}

func monitorByID(monitors []Monitor, id int) (Monitor, bool) {
	for _, m := range monitors {
		if m.ID == id {
			return m, true
		}
	}
	return Monitor{}, false
}

// UsableBounds returns the monitor area not reserved by docks and panels.
func (c *Connection) UsableBounds(m Monitor) platform.Rect {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return m.Bounds
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return m.Bounds
	}

	var acc struts
	for _, windowID := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
		if err != nil || !hasType(types, "_NET_WM_WINDOW_TYPE_DOCK") {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			acc.add(m.Bounds, rootWidth, rootHeight, sp)
			continue
		}

		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			acc.add(m.Bounds, rootWidth, rootHeight, &ewmh.WmStrutPartial{
				Left:       s.Left,
				Right:      s.Right,
				Top:        s.Top,
				Bottom:     s.Bottom,
				LeftEndY:   uint(rootHeight - 1),
				RightEndY:  uint(rootHeight - 1),
				TopEndX:    uint(rootWidth - 1),
				BottomEndX: uint(rootWidth - 1),
			})
		}
	}
	return acc.apply(m.Bounds)
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

// struts accumulates the space docks reserve on each edge of one monitor.
type struts struct {
	left, right, top, bottom int
}

func (s *struts) add(mon platform.Rect, rootWidth, rootHeight int, sp *ewmh.WmStrutPartial) {
	if sp.Top > 0 {
		r := platform.Rect{X: int(sp.TopStartX), Y: 0, Width: int(sp.TopEndX) + 1 - int(sp.TopStartX), Height: int(sp.Top)}
		s.top = max(s.top, intersect(mon, r).Height)
	}
	if sp.Bottom > 0 {
		r := platform.Rect{X: int(sp.BottomStartX), Y: rootHeight - int(sp.Bottom), Width: int(sp.BottomEndX) + 1 - int(sp.BottomStartX), Height: int(sp.Bottom)}
		s.bottom = max(s.bottom, intersect(mon, r).Height)
	}
	if sp.Left > 0 {
		r := platform.Rect{X: 0, Y: int(sp.LeftStartY), Width: int(sp.Left), Height: int(sp.LeftEndY) + 1 - int(sp.LeftStartY)}
		s.left = max(s.left, intersect(mon, r).Width)
	}
	if sp.Right > 0 {
		r := platform.Rect{X: rootWidth - int(sp.Right), Y: int(sp.RightStartY), Width: int(sp.Right), Height: int(sp.RightEndY) + 1 - int(sp.RightStartY)}
		s.right = max(s.right, intersect(mon, r).Width)
	}
}

func (s struts) apply(r platform.Rect) platform.Rect {
	r.X += s.left
	r.Y += s.top
	r.Width = max(1, r.Width-s.left-s.right)
	r.Height = max(1, r.Height-s.top-s.bottom)
	return r
}

// intersect returns the overlap of a and b, zero-sized when they are
// disjoint.
func intersect(a, b platform.Rect) platform.Rect {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	x2 := min(a.X+a.Width, b.X+b.Width)
	y2 := min(a.Y+a.Height, b.Y+b.Height)
	if x2 <= x1 || y2 <= y1 {
		return platform.Rect{}
	}
	return platform.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
