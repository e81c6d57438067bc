package simhost

import (
	"fmt"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/platform"
)

// Method implements platform.TaskService. The exposed entry points follow
// the host version: root-task names from Android 12, stack names before,
// and no per-display listing on Android 10.
func (h *Host) Method(name string) (platform.Method, bool) {
	impl, ok := h.methodSet()[name]
	if !ok {
		return nil, false
	}
	return func(args ...int) (any, error) {
		h.mu.Lock()
		h.calls[name]++
		err := h.failures[name]
		h.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return impl(args)
	}, true
}

func (h *Host) methodSet() map[string]func([]int) (any, error) {
	m := map[string]func([]int) (any, error){
		"removeTask":     h.removeTask,
		"setFocusedTask": h.setFocusedTask,
	}
	if h.version >= platform.API31 {
		m["getFocusedRootTaskInfo"] = h.focusedTask
		m["getAllRootTaskInfos"] = h.allTasks
		m["getAllRootTaskInfosOnDisplay"] = h.tasksOnDisplay
		m["moveRootTaskToDisplay"] = h.moveTask
		return m
	}
	m["getFocusedStackInfo"] = h.focusedTask
	m["getAllStackInfos"] = h.allTasks
	m["moveStackToDisplay"] = h.moveTask
	if h.version >= platform.API30 {
		m["getAllStackInfosOnDisplay"] = h.tasksOnDisplay
	}
	return m
}

func needArgs(args []int, n int) error {
	if len(args) < n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func (h *Host) focusedTask([]int) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := h.indexLocked(h.focused)
	if idx < 0 {
		return nil, nil
	}
	return attr.Source(h.recordLocked(h.tasks[idx])), nil
}

func (h *Host) allTasks([]int) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]attr.Source, 0, len(h.tasks))
	for _, t := range h.tasks {
		out = append(out, h.recordLocked(t))
	}
	return out, nil
}

func (h *Host) tasksOnDisplay(args []int) (any, error) {
	if err := needArgs(args, 1); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]attr.Source, 0, len(h.tasks))
	for _, t := range h.tasks {
		if t.DisplayID == args[0] {
			out = append(out, h.recordLocked(t))
		}
	}
	return out, nil
}

func (h *Host) removeTask(args []int) (any, error) {
	if err := needArgs(args, 1); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := h.indexLocked(args[0])
	if idx < 0 {
		return false, nil
	}
	h.tasks = append(h.tasks[:idx], h.tasks[idx+1:]...)
	if h.focused == args[0] {
		h.focused = -1
		if len(h.tasks) > 0 {
			h.focused = h.tasks[0].ID
		}
	}
	return true, nil
}

func (h *Host) setFocusedTask(args []int) (any, error) {
	if err := needArgs(args, 1); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.focusLocked(args[0]) {
		return nil, fmt.Errorf("task %d not found", args[0])
	}
	return nil, nil
}

func (h *Host) moveTask(args []int) (any, error) {
	if err := needArgs(args, 2); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.displays[args[1]]; !ok {
		return nil, fmt.Errorf("display %d not found", args[1])
	}
	idx := h.indexLocked(args[0])
	if idx < 0 {
		return nil, fmt.Errorf("task %d not found", args[0])
	}
	h.tasks[idx].DisplayID = args[1]
	return nil, nil
}
