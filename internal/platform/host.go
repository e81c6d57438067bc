// Package platform defines the host abstractions the task and display
// subsystem is written against: a task-management service whose entry points
// are looked up by name, a display service, and optional change events.
package platform

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/1broseidon/taskmirror/internal/attr"
)

// Version identifies the host release. Entry-point names and record shapes
// are keyed by it.
type Version int

const (
	API29 Version = 29 // Android 10
	API30 Version = 30 // Android 11
	API31 Version = 31 // Android 12

	// Latest is used by hosts that are not versioned the Android way.
	Latest Version = math.MaxInt32
)

func (v Version) String() string {
	if v == Latest {
		return "latest"
	}
	return fmt.Sprintf("api%d", int(v))
}

// ErrNoSuchMethod reports that a service does not expose an entry point.
var ErrNoSuchMethod = errors.New("no such method")

// Method invokes one host entry point. Arguments are task and display ids in
// the order the entry point declares them.
//
// Result shapes by entry point kind:
//   - focused task: attr.Source, nil when nothing is focused
//   - task listing: []attr.Source
//   - removal: bool
//   - focus and move: nil
type Method func(args ...int) (any, error)

// TaskService is the host's task-management service.
type TaskService interface {
	Method(name string) (Method, bool)
}

// DisplayService describes displays by id.
type DisplayService interface {
	// DisplayInfo returns false when the display does not exist.
	DisplayInfo(displayID int) (DisplayInfo, bool)
}

// DisplayInfo is a display descriptor.
type DisplayInfo struct {
	ID       int      `json:"id"`
	Name     string   `json:"name,omitempty"`
	Size     Size     `json:"size"`
	Rotation Rotation `json:"rotation"`
	Density  int      `json:"density,omitempty"`
}

// Host bundles the services of one connected device or desktop.
type Host interface {
	Name() string
	Version() Version
	Tasks() TaskService
	Displays() DisplayService
	Close() error
}

// ConfigurationSource is implemented by hosts that can report the current
// configuration record of a display from a descriptor the caller already
// holds. It backs polling when a host has no change events.
type ConfigurationSource interface {
	Configuration(info DisplayInfo) (attr.Source, bool)
}

// EventKind distinguishes the two change channels.
type EventKind int

const (
	DisplayChanged EventKind = iota
	ConfigurationChanged
)

func (k EventKind) String() string {
	switch k {
	case DisplayChanged:
		return "display"
	case ConfigurationChanged:
		return "configuration"
	}
	return "unknown"
}

// Event is a change notification from the host.
type Event struct {
	Kind      EventKind
	DisplayID int
	// Configuration is set for ConfigurationChanged events.
	Configuration attr.Source
}

// EventSource is implemented by hosts that push change notifications. The
// channel is closed when ctx is done or the host goes away.
type EventSource interface {
	Events(ctx context.Context) (<-chan Event, error)
}
