package task

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/platform"
)

// Observer receives the outcome of every host invocation.
type Observer interface {
	ObserveCall(op capability.Operation, elapsed time.Duration, err error)
}

// Controller issues task operations against a host task service. Every
// operation is synchronous and never retried. Failures are logged once and
// reported through the sentinel result documented on each method.
type Controller struct {
	resolver *capability.Resolver
	version  platform.Version
	logger   *slog.Logger
	observer Observer
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver installs a call observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// NewController creates a controller resolving operations through resolver.
func NewController(resolver *capability.Resolver, opts ...Option) *Controller {
	c := &Controller{
		resolver: resolver,
		version:  resolver.Version(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolver returns the capability resolver backing the controller.
func (c *Controller) Resolver() *capability.Resolver { return c.resolver }

// Version returns the host version task records are read with.
func (c *Controller) Version() platform.Version { return c.version }

// FocusedTask returns the focused root task, or nil when nothing is focused
// or the query fails.
func (c *Controller) FocusedTask() *Info {
	res, err := c.invoke(capability.GetFocusedTask)
	if err != nil {
		c.fail(capability.GetFocusedTask, err)
		return nil
	}
	if res == nil {
		return nil
	}
	src, ok := res.(attr.Source)
	if !ok {
		c.fail(capability.GetFocusedTask, unexpectedResult(res))
		return nil
	}
	info, err := NewInfo(src, c.version)
	if err != nil {
		return nil
	}
	return info
}

// AllTasks returns every root task in host order. ok is false when the query
// failed, which is distinct from an empty list.
func (c *Controller) AllTasks() ([]*Info, bool) {
	return c.list(capability.ListAllTasks)
}

// TasksOnDisplay returns the root tasks on displayID. Hosts without a
// per-display listing are served by filtering AllTasks.
func (c *Controller) TasksOnDisplay(displayID int) ([]*Info, bool) {
	if _, err := c.resolver.Resolve(capability.ListTasksOnDisplay); err != nil {
		c.logger.Debug("per-display task listing unavailable, filtering all tasks",
			"display_id", displayID,
		)
		all, ok := c.AllTasks()
		if !ok {
			return nil, false
		}
		filtered := make([]*Info, 0, len(all))
		for _, info := range all {
			if info.DisplayID() == displayID {
				filtered = append(filtered, info)
			}
		}
		return filtered, true
	}
	return c.list(capability.ListTasksOnDisplay, displayID)
}

// RemoveTask removes a task. ok is false when the call failed; removed is the
// host's answer otherwise.
func (c *Controller) RemoveTask(taskID int) (removed, ok bool) {
	res, err := c.invoke(capability.RemoveTask, taskID)
	if err != nil {
		c.fail(capability.RemoveTask, err, "task_id", taskID)
		return false, false
	}
	b, isBool := res.(bool)
	if !isBool {
		c.fail(capability.RemoveTask, unexpectedResult(res), "task_id", taskID)
		return false, false
	}
	return b, true
}

// SetFocusedTask focuses a task. Failures are logged only.
func (c *Controller) SetFocusedTask(taskID int) {
	if _, err := c.invoke(capability.FocusTask, taskID); err != nil {
		c.fail(capability.FocusTask, err, "task_id", taskID)
	}
}

// MoveTaskToDisplay moves a task to another display. Failures are logged
// only.
func (c *Controller) MoveTaskToDisplay(taskID, displayID int) {
	if _, err := c.invoke(capability.MoveTaskToDisplay, taskID, displayID); err != nil {
		c.fail(capability.MoveTaskToDisplay, err, "task_id", taskID, "display_id", displayID)
	}
}

func (c *Controller) list(op capability.Operation, args ...int) ([]*Info, bool) {
	res, err := c.invoke(op, args...)
	if err != nil {
		c.fail(op, err, listArgs(args)...)
		return nil, false
	}
	var records []attr.Source
	switch v := res.(type) {
	case nil:
	case []attr.Source:
		records = v
	case []*attr.Record:
		records = make([]attr.Source, 0, len(v))
		for _, r := range v {
			if r != nil {
				records = append(records, r)
			}
		}
	default:
		c.fail(op, unexpectedResult(res), listArgs(args)...)
		return nil, false
	}

	infos := make([]*Info, 0, len(records))
	for _, rec := range records {
		info, err := NewInfo(rec, c.version)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, true
}

// invoke resolves op and calls it. A panicking entry point is reported as an
// error.
func (c *Controller) invoke(op capability.Operation, args ...int) (res any, err error) {
	b, err := c.resolver.Resolve(op)
	if err != nil {
		if c.observer != nil {
			c.observer.ObserveCall(op, 0, err)
		}
		return nil, err
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%s panicked: %v", b.Name, r)
		}
		if c.observer != nil {
			c.observer.ObserveCall(op, time.Since(start), err)
		}
	}()

	res, err = b.Method(args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name, err)
	}
	return res, nil
}

func (c *Controller) fail(op capability.Operation, err error, kv ...any) {
	attrs := append([]any{"op", string(op)}, kv...)
	attrs = append(attrs, "error", err)
	msg := "task operation failed"
	if errors.Is(err, capability.ErrUnsupported) {
		msg = "task operation unsupported"
	}
	c.logger.Error(msg, attrs...)
}

func listArgs(args []int) []any {
	if len(args) == 0 {
		return nil
	}
	return []any{"display_id", args[0]}
}

func unexpectedResult(v any) error {
	return fmt.Errorf("unexpected result type %T", v)
}
