// Package capability resolves abstract task operations to the host entry
// point that implements them on the running host version.
package capability

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/1broseidon/taskmirror/internal/platform"
)

// ErrUnsupported reports that no candidate entry point exists for an
// operation on this host.
var ErrUnsupported = errors.New("operation unsupported on this host")

// Operation names an abstract task operation.
type Operation string

const (
	GetFocusedTask     Operation = "get-focused-task"
	ListAllTasks       Operation = "list-all-tasks"
	ListTasksOnDisplay Operation = "list-tasks-on-display"
	RemoveTask         Operation = "remove-task"
	FocusTask          Operation = "focus-task"
	MoveTaskToDisplay  Operation = "move-task-to-display"
)

// Operations lists every operation in a stable order.
func Operations() []Operation {
	return []Operation{
		GetFocusedTask,
		ListAllTasks,
		ListTasksOnDisplay,
		RemoveTask,
		FocusTask,
		MoveTaskToDisplay,
	}
}

// Candidate is one entry-point name and the first host version exposing it.
type Candidate struct {
	Name       string
	MinVersion platform.Version
}

// Table maps operations to candidates ordered newest to oldest.
type Table map[Operation][]Candidate

// AndroidTable returns the entry points of the Android activity task
// manager. Android 12 renamed stacks to root tasks; the per-display listing
// does not exist before Android 11.
func AndroidTable() Table {
	return Table{
		GetFocusedTask: {
			{Name: "getFocusedRootTaskInfo", MinVersion: platform.API31},
			{Name: "getFocusedStackInfo"},
		},
		ListAllTasks: {
			{Name: "getAllRootTaskInfos", MinVersion: platform.API31},
			{Name: "getAllStackInfos"},
		},
		ListTasksOnDisplay: {
			{Name: "getAllRootTaskInfosOnDisplay", MinVersion: platform.API31},
			{Name: "getAllStackInfosOnDisplay", MinVersion: platform.API30},
		},
		RemoveTask: {
			{Name: "removeTask"},
		},
		FocusTask: {
			{Name: "setFocusedTask"},
		},
		MoveTaskToDisplay: {
			{Name: "moveRootTaskToDisplay", MinVersion: platform.API31},
			{Name: "moveStackToDisplay"},
		},
	}
}

// Binding is a resolved operation.
type Binding struct {
	Operation Operation
	Name      string
	Method    platform.Method
}

type resolution struct {
	binding *Binding
	err     error
}

// Observer is told about each resolution that gets cached.
type Observer func(op Operation, name string, err error)

// Resolver memoizes operation resolution for the lifetime of the process.
// Failed resolutions are cached too. Concurrent first use of an operation may
// look it up more than once; every lookup yields an equivalent binding and
// the first one stored wins.
type Resolver struct {
	svc      platform.TaskService
	version  platform.Version
	table    Table
	cache    sync.Map // Operation -> resolution
	observer Observer
}

// NewResolver builds a resolver over svc for the given host version.
func NewResolver(svc platform.TaskService, version platform.Version, table Table) *Resolver {
	return &Resolver{svc: svc, version: version, table: table}
}

// SetObserver installs an observer. It must be called before first use.
func (r *Resolver) SetObserver(o Observer) {
	r.observer = o
}

// Version returns the host version resolution is keyed on.
func (r *Resolver) Version() platform.Version {
	return r.version
}

// Resolve returns the binding for op, resolving it on first use.
func (r *Resolver) Resolve(op Operation) (*Binding, error) {
	if v, ok := r.cache.Load(op); ok {
		res := v.(resolution)
		return res.binding, res.err
	}

	res := r.lookup(op)
	actual, loaded := r.cache.LoadOrStore(op, res)
	if !loaded && r.observer != nil {
		name := ""
		if res.binding != nil {
			name = res.binding.Name
		}
		r.observer(op, name, res.err)
	}
	stored := actual.(resolution)
	return stored.binding, stored.err
}

func (r *Resolver) lookup(op Operation) resolution {
	candidates, ok := r.table[op]
	if !ok {
		return resolution{err: fmt.Errorf("%s: %w", op, ErrUnsupported)}
	}
	if r.svc == nil {
		return resolution{err: fmt.Errorf("%s: no task service: %w", op, ErrUnsupported)}
	}
	for _, c := range candidates {
		if r.version < c.MinVersion {
			continue
		}
		m, ok := r.svc.Method(c.Name)
		if !ok || m == nil {
			continue
		}
		return resolution{binding: &Binding{Operation: op, Name: c.Name, Method: m}}
	}
	return resolution{err: fmt.Errorf("%s on %s: %w", op, r.version, ErrUnsupported)}
}

// Status describes a cached resolution.
type Status struct {
	Operation Operation `json:"operation"`
	Name      string    `json:"name,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Resolved lists the operations resolved so far, sorted by operation.
func (r *Resolver) Resolved() []Status {
	var out []Status
	r.cache.Range(func(k, v any) bool {
		res := v.(resolution)
		s := Status{Operation: k.(Operation)}
		if res.binding != nil {
			s.Name = res.binding.Name
		}
		if res.err != nil {
			s.Error = res.err.Error()
		}
		out = append(out, s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}
