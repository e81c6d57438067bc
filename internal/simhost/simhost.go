// Package simhost is an in-memory host shaped like an Android release. It
// backs the "sim" host kind and the tests of the packages above it.
package simhost

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/platform"
)

// Task is a simulated root task.
type Task struct {
	ID             int
	DisplayID      int
	Package        string
	Class          string
	Visible        bool
	ActivityType   int
	LastActiveTime int64
}

// Host is a simulated host. It is safe for concurrent use.
type Host struct {
	version platform.Version

	mu        sync.Mutex
	tasks     []Task
	displays  map[int]platform.DisplayInfo
	focused   int
	failures  map[string]error
	calls     map[string]int
	listeners []chan platform.Event
}

// New creates an empty host of the given version.
func New(version platform.Version) *Host {
	return &Host{
		version:  version,
		displays: make(map[int]platform.DisplayInfo),
		focused:  -1,
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// NewDefault creates a host with one portrait phone display and a launcher
// plus two apps on it.
func NewDefault(version platform.Version) *Host {
	h := New(version)
	h.SetDisplay(platform.DisplayInfo{ID: 0, Name: "Built-in Screen", Size: platform.Size{Width: 1080, Height: 2340}, Density: 440})
	h.AddTask(Task{ID: 1, Package: "com.android.launcher3", Class: "com.android.launcher3.uioverrides.QuickstepLauncher", ActivityType: platform.ActivityTypeHome, LastActiveTime: 100})
	h.AddTask(Task{ID: 12, Package: "com.android.settings", Class: "com.android.settings.Settings", Visible: true, ActivityType: platform.ActivityTypeStandard, LastActiveTime: 300})
	h.AddTask(Task{ID: 14, Package: "org.mozilla.firefox", Class: "org.mozilla.fenix.HomeActivity", ActivityType: platform.ActivityTypeStandard, LastActiveTime: 200})
	h.Focus(12)
	return h
}

func (h *Host) Name() string { return "sim" }
func (h *Host) Version() platform.Version { return h.version }
func (h *Host) Tasks() platform.TaskService { return h }
func (h *Host) Displays() platform.DisplayService { return h }

// Close closes every event channel.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.listeners {
		close(ch)
	}
	h.listeners = nil
	return nil
}

// AddTask places a task on top of the task list.
func (h *Host) AddTask(t Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks = append([]Task{t}, h.tasks...)
}

// Focus marks a task as focused and moves it to the top.
func (h *Host) Focus(taskID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focusLocked(taskID)
}

func (h *Host) focusLocked(taskID int) bool {
	idx := h.indexLocked(taskID)
	if idx < 0 {
		return false
	}
	t := h.tasks[idx]
	t.Visible = true
	h.tasks = append(h.tasks[:idx], h.tasks[idx+1:]...)
	h.tasks = append([]Task{t}, h.tasks...)
	h.focused = taskID
	return true
}

// TaskList returns a copy of the tasks in host order.
func (h *Host) TaskList() []Task {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Task(nil), h.tasks...)
}

// SetDisplay adds or replaces a display and emits a display-changed event.
func (h *Host) SetDisplay(info platform.DisplayInfo) {
	h.mu.Lock()
	h.displays[info.ID] = info
	h.mu.Unlock()
	h.emit(platform.Event{Kind: platform.DisplayChanged, DisplayID: info.ID})
}

// RemoveDisplay drops a display and emits a display-changed event.
func (h *Host) RemoveDisplay(id int) {
	h.mu.Lock()
	delete(h.displays, id)
	h.mu.Unlock()
	h.emit(platform.Event{Kind: platform.DisplayChanged, DisplayID: id})
}

// Rotate changes a display's rotation and emits a configuration-changed
// event carrying the new configuration.
func (h *Host) Rotate(id int, r platform.Rotation) error {
	h.mu.Lock()
	info, ok := h.displays[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("display %d not found", id)
	}
	info.Rotation = r
	h.displays[id] = info
	h.mu.Unlock()

	h.emit(platform.Event{Kind: platform.ConfigurationChanged, DisplayID: id, Configuration: platform.DisplayConfiguration(info)})
	return nil
}

// Fail makes the named entry point return err. A nil err clears it.
func (h *Host) Fail(method string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failures, method)
		return
	}
	h.failures[method] = err
}

// Calls returns how often an entry point was invoked.
func (h *Host) Calls(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[method]
}

// DisplayInfo implements platform.DisplayService.
func (h *Host) DisplayInfo(id int) (platform.DisplayInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	info, ok := h.displays[id]
	return info, ok
}

// DisplayIDs lists known displays in ascending order.
func (h *Host) DisplayIDs() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(h.displays))
	for id := range h.displays {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Configuration implements platform.ConfigurationSource.
func (h *Host) Configuration(info platform.DisplayInfo) (attr.Source, bool) {
	return platform.DisplayConfiguration(info), true
}

// Events implements platform.EventSource.
func (h *Host) Events(ctx context.Context) (<-chan platform.Event, error) {
	ch := make(chan platform.Event, 16)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, l := range h.listeners {
			if l == ch {
				h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return ch, nil
}

func (h *Host) emit(ev platform.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Host) indexLocked(taskID int) int {
	for i, t := range h.tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

func (h *Host) recordLocked(t Task) *attr.Record {
	c := platform.Component{Package: t.Package, Class: t.Class}
	bounds := platform.Rect{}
	rotation := platform.Rotation0
	if info, ok := h.displays[t.DisplayID]; ok {
		bounds = platform.Rect{Width: info.Size.Width, Height: info.Size.Height}
		rotation = info.Rotation
	}
	return platform.AndroidTaskRecord(h.version, platform.AndroidTask{
		ID:             t.ID,
		DisplayID:      t.DisplayID,
		Bounds:         bounds,
		Visible:        t.Visible,
		Base:           c,
		Top:            c,
		ActivityType:   t.ActivityType,
		Rotation:       rotation,
		LastActiveTime: t.LastActiveTime,
	})
}
