package adb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/platform"
)

// Options configures a Host.
type Options struct {
	// SDKOverride skips version detection when positive.
	SDKOverride int
	Logger      *slog.Logger
}

// Host is an Android device driven through adb shell commands. Task records
// are built in the shape the device's release uses, so entry-point and field
// selection behave as they would in-process.
type Host struct {
	runner  Runner
	version platform.Version
	logger  *slog.Logger
}

var (
	_ platform.Host                = (*Host)(nil)
	_ platform.ConfigurationSource = (*Host)(nil)
)

// New connects to the device behind runner and detects its release.
func New(ctx context.Context, runner Runner, opts Options) (*Host, error) {
	h := &Host{runner: runner, logger: opts.Logger}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	if opts.SDKOverride > 0 {
		h.version = platform.Version(opts.SDKOverride)
		return h, nil
	}

	out, err := runner.Shell(ctx, "getprop", "ro.build.version.sdk")
	if err != nil {
		return nil, fmt.Errorf("failed to detect sdk level: %w", err)
	}
	v, err := parseSDK(out)
	if err != nil {
		return nil, err
	}
	h.version = v
	h.logger.Info("connected to android device", "sdk", int(v))
	return h, nil
}

func (h *Host) Name() string { return "adb" }
func (h *Host) Version() platform.Version { return h.version }
func (h *Host) Tasks() platform.TaskService { return h }
func (h *Host) Displays() platform.DisplayService { return h }
func (h *Host) Close() error { return nil }

// Method implements platform.TaskService with the entry points the device's
// release provides.
func (h *Host) Method(name string) (platform.Method, bool) {
	impl, ok := h.methodSet()[name]
	if !ok {
		return nil, false
	}
	return func(args ...int) (any, error) { return impl(context.Background(), args) }, true
}

type shellMethod func(ctx context.Context, args []int) (any, error)

func (h *Host) methodSet() map[string]shellMethod {
	m := map[string]shellMethod{
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

func (h *Host) stacks(ctx context.Context) ([]stackEntry, error) {
	out, err := h.runner.Shell(ctx, "am", "stack", "list")
	if err != nil {
		return nil, err
	}
	return parseStackList(out)
}

func (h *Host) record(s stackEntry) attr.Source {
	return platform.AndroidTaskRecord(h.version, s.androidTask()).WithLogger(h.logger)
}

func (h *Host) focusedTask(ctx context.Context, _ []int) (any, error) {
	out, err := h.runner.Shell(ctx, "dumpsys", "activity", "activities")
	if err != nil {
		return nil, err
	}
	taskID, ok := parseResumedTask(out)
	if !ok {
		return nil, nil
	}
	stacks, err := h.stacks(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range stacks {
		if s.contains(taskID) {
			return h.record(s), nil
		}
	}
	return nil, nil
}

func (h *Host) allTasks(ctx context.Context, _ []int) (any, error) {
	stacks, err := h.stacks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]attr.Source, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, h.record(s))
	}
	return out, nil
}

func (h *Host) tasksOnDisplay(ctx context.Context, args []int) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing display id")
	}
	stacks, err := h.stacks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]attr.Source, 0, len(stacks))
	for _, s := range stacks {
		if s.DisplayID == args[0] {
			out = append(out, h.record(s))
		}
	}
	return out, nil
}

func (h *Host) findStack(ctx context.Context, taskID int) (stackEntry, bool, error) {
	stacks, err := h.stacks(ctx)
	if err != nil {
		return stackEntry{}, false, err
	}
	for _, s := range stacks {
		if s.contains(taskID) {
			return s, true, nil
		}
	}
	return stackEntry{}, false, nil
}

// removeTask reports false without touching the device when the task does
// not exist.
func (h *Host) removeTask(ctx context.Context, args []int) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing task id")
	}
	s, ok, err := h.findStack(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return false, nil
	}
	out, err := h.runner.Shell(ctx, "am", "stack", "remove", strconv.Itoa(s.ID))
	if err != nil {
		return nil, err
	}
	if err := shellError(out); err != nil {
		return nil, err
	}
	return true, nil
}

// setFocusedTask brings the task's base activity to front.
func (h *Host) setFocusedTask(ctx context.Context, args []int) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing task id")
	}
	s, ok, err := h.findStack(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("task %d not found", args[0])
	}
	base := s.androidTask().Base
	if base.IsZero() {
		return nil, fmt.Errorf("task %d has no base activity", args[0])
	}
	out, err := h.runner.Shell(ctx, "am", "start",
		"--user", strconv.Itoa(s.UserID),
		"--activity-reorder-to-front",
		"-n", base.String(),
	)
	if err != nil {
		return nil, err
	}
	return nil, shellError(out)
}

func (h *Host) moveTask(ctx context.Context, args []int) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("missing task or display id")
	}
	out, err := h.runner.Shell(ctx, "am", "display", "move-stack", strconv.Itoa(args[0]), strconv.Itoa(args[1]))
	if err != nil {
		return nil, err
	}
	return nil, shellError(out)
}

// DisplayInfo implements platform.DisplayService.
func (h *Host) DisplayInfo(displayID int) (platform.DisplayInfo, bool) {
	out, err := h.runner.Shell(context.Background(), "dumpsys", "display")
	if err != nil {
		h.logger.Warn("failed to query displays", "error", err)
		return platform.DisplayInfo{}, false
	}
	info, ok := parseDisplays(out)[displayID]
	return info, ok
}

// Configuration implements platform.ConfigurationSource from the rotation and
// size in info. It does not query the device.
func (h *Host) Configuration(info platform.DisplayInfo) (attr.Source, bool) {
	return platform.DisplayConfiguration(info), true
}

// shellError turns the error text am prints on stdout into an error.
func shellError(out string) error {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Error") || strings.Contains(line, "Exception") {
			return errors.New(line)
		}
	}
	return nil
}
