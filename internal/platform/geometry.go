package platform

import (
	"fmt"
	"strings"
)

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) String() string {
	return fmt.Sprintf("Rect(%d, %d - %d, %d)", r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Rotation is a display rotation in quarter turns.
type Rotation int

const (
	RotationUnknown Rotation = -1
	Rotation0       Rotation = 0
	Rotation90      Rotation = 1
	Rotation180     Rotation = 2
	Rotation270     Rotation = 3
)

// Valid reports whether r is one of the four quarter turns.
func (r Rotation) Valid() bool {
	return r >= Rotation0 && r <= Rotation270
}

func (r Rotation) String() string {
	if !r.Valid() {
		return "unknown"
	}
	return fmt.Sprintf("%d", int(r)*90)
}

// Component identifies an application entry point as package plus class.
type Component struct {
	Package string `json:"package"`
	Class   string `json:"class"`
}

// ParseComponent parses "package/class". A class starting with '.' is
// relative to the package.
func ParseComponent(s string) (Component, error) {
	s = strings.TrimSpace(s)
	pkg, cls, ok := strings.Cut(s, "/")
	if !ok || pkg == "" || cls == "" || strings.ContainsAny(s, " \t{}") {
		return Component{}, fmt.Errorf("malformed component %q", s)
	}
	if strings.HasPrefix(cls, ".") {
		cls = pkg + cls
	}
	return Component{Package: pkg, Class: cls}, nil
}

// IsZero reports whether c is the empty component.
func (c Component) IsZero() bool {
	return c.Package == "" && c.Class == ""
}

// String returns the flattened "package/class" form.
func (c Component) String() string {
	if c.IsZero() {
		return ""
	}
	return c.Package + "/" + c.Class
}

// ShortString abbreviates a class that lives inside the package.
func (c Component) ShortString() string {
	if c.IsZero() {
		return ""
	}
	if strings.HasPrefix(c.Class, c.Package+".") {
		return c.Package + "/" + c.Class[len(c.Package):]
	}
	return c.String()
}
