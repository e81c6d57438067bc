package ipc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/simhost"
	"github.com/1broseidon/taskmirror/internal/task"
)

type testEnv struct {
	host    *simhost.Host
	server  *Server
	client  *Client
	reloads int
}

func startServer(t *testing.T, version platform.Version, table capability.Table) *testEnv {
	t.Helper()

	// Unix socket paths are length-limited; keep the directory short.
	dir, err := os.MkdirTemp("", "tm-ipc")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("TASKMIRROR_SOCKET", filepath.Join(dir, "s.sock"))

	env := &testEnv{host: simhost.NewDefault(version)}
	resolver := capability.NewResolver(env.host.Tasks(), version, table)
	tracker := display.NewTracker(0, env.host.Displays(), display.InvalidatorFunc(func() {}))
	tracker.Prime()

	env.server, err = NewServer(Deps{
		Tasks:    task.NewController(resolver),
		Tracker:  tracker,
		Displays: env.host.Displays(),
		Status: func() StatusData {
			return StatusData{SessionID: "test-session", Host: "sim", DisplayID: 0}
		},
		Reload: func() error {
			env.reloads++
			if env.reloads > 1 {
				return errors.New("bad config")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	if err := env.server.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(env.server.Stop)

	env.client = NewClient()
	return env
}

func TestServer_StatusAndReload(t *testing.T) {
	env := startServer(t, platform.API31, capability.AndroidTable())

	status, err := env.client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if status.SessionID != "test-session" || !status.DaemonRunning {
		t.Fatalf("GetStatus() = %+v", status)
	}

	if err := env.client.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if err := env.client.Reload(); err == nil || !strings.Contains(err.Error(), "bad config") {
		t.Fatalf("second Reload() error = %v, want bad config", err)
	}
}

func TestServer_TaskQueries(t *testing.T) {
	env := startServer(t, platform.API31, capability.AndroidTable())

	focused, err := env.client.FocusedTask()
	if err != nil {
		t.Fatalf("FocusedTask() error: %v", err)
	}
	if focused == nil || focused.TaskID != 12 || focused.BaseApplication != "com.android.settings/com.android.settings.Settings" {
		t.Fatalf("FocusedTask() = %+v", focused)
	}

	all, err := env.client.ListTasks(-1)
	if err != nil {
		t.Fatalf("ListTasks(-1) error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListTasks(-1) returned %d tasks, want 3", len(all))
	}

	none, err := env.client.ListTasks(5)
	if err != nil {
		t.Fatalf("ListTasks(5) error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("ListTasks(5) = %+v, want empty", none)
	}
}

func TestServer_TaskMutations(t *testing.T) {
	env := startServer(t, platform.API31, capability.AndroidTable())

	if err := env.client.FocusTask(14); err != nil {
		t.Fatalf("FocusTask() error: %v", err)
	}
	focused, err := env.client.FocusedTask()
	if err != nil || focused == nil || focused.TaskID != 14 {
		t.Fatalf("FocusedTask() after focus = %+v, %v", focused, err)
	}

	removed, err := env.client.RemoveTask(14)
	if err != nil || !removed {
		t.Fatalf("RemoveTask(14) = %v, %v", removed, err)
	}
	removed, err = env.client.RemoveTask(14)
	if err != nil || removed {
		t.Fatalf("RemoveTask(14) again = %v, %v, want false", removed, err)
	}

	env.host.SetDisplay(platform.DisplayInfo{ID: 2, Size: platform.Size{Width: 1920, Height: 1080}})
	if err := env.client.MoveTask(12, 2); err != nil {
		t.Fatalf("MoveTask() error: %v", err)
	}
	moved, err := env.client.ListTasks(2)
	if err != nil || len(moved) != 1 || moved[0].TaskID != 12 {
		t.Fatalf("ListTasks(2) = %+v, %v", moved, err)
	}

	if _, err := env.client.RemoveTask(-3); err == nil {
		t.Fatal("RemoveTask(-3) succeeded")
	}
}

func TestServer_UnsupportedOperation(t *testing.T) {
	table := capability.AndroidTable()
	delete(table, capability.MoveTaskToDisplay)
	env := startServer(t, platform.API31, table)

	err := env.client.MoveTask(12, 1)
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("MoveTask() error = %v, want not supported", err)
	}
}

func TestServer_DisplayStateAndInspect(t *testing.T) {
	env := startServer(t, platform.API31, capability.AndroidTable())

	state, err := env.client.GetDisplayState()
	if err != nil {
		t.Fatalf("GetDisplayState() error: %v", err)
	}
	if !state.State.SizeKnown || state.State.Size != (platform.Size{Width: 1080, Height: 2340}) {
		t.Fatalf("GetDisplayState() = %+v", state)
	}
	if state.Info == nil || state.Info.Density != 440 {
		t.Fatalf("display info = %+v", state.Info)
	}

	data, err := env.client.InspectTask(12)
	if err != nil {
		t.Fatalf("InspectTask() error: %v", err)
	}
	found := false
	for _, a := range data.Attributes {
		if a.Name == "taskId" && a.Value == "12" {
			found = true
		}
	}
	if !found {
		t.Fatalf("InspectTask() attributes missing taskId: %+v", data.Attributes)
	}

	if _, err := env.client.InspectTask(99); err == nil {
		t.Fatal("InspectTask(99) succeeded")
	}
}

func TestServer_UnknownCommand(t *testing.T) {
	env := startServer(t, platform.API31, capability.AndroidTable())
	err := env.client.call("FROBNICATE", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "Unknown command") {
		t.Fatalf("call() error = %v", err)
	}
}
