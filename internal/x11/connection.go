package x11

import (
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window
	// Display is the display name the connection was opened with; empty
	// means $DISPLAY.
	Display string
}

// NewConnection connects to the named X display, or $DISPLAY when name is
// empty.
func NewConnection(name string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(name)
	if err != nil {
		return nil, err
	}

	return &Connection{
		XUtil:   xu,
		Root:    xu.RootWin(),
		Display: name,
	}, nil
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
