package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/config"
	"github.com/1broseidon/taskmirror/internal/daemon"
	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/logging"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/task"
)

// startDaemon runs a simulated-host daemon on a private socket.
func startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	dir, err := os.MkdirTemp("", "tm-cli")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("TASKMIRROR_SOCKET", filepath.Join(dir, "c.sock"))

	cfg := config.DefaultConfig()
	cfg.Host = config.HostSim
	cfg.Sim.Displays = []config.SimDisplay{
		{ID: 0, Width: 1080, Height: 2340},
		{ID: 2, Width: 1920, Height: 1080},
	}
	logger, err := logging.New(config.LoggingConfig{Level: "error"}, io.Discard)
	if err != nil {
		t.Fatalf("logging.New() error: %v", err)
	}
	d := daemon.New(cfg, "", daemon.NewSimHost(cfg.Sim), capability.AndroidTable(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		d.Close()
	})

	client := ipc.NewClient()
	deadline := time.Now().Add(2 * time.Second)
	for client.Ping() != nil {
		if time.Now().After(deadline) {
			t.Fatal("daemon did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return d
}

func TestRunTask_AgainstDaemon(t *testing.T) {
	startDaemon(t)

	if rc := runTask([]string{"list", "--display", "0"}); rc != 0 {
		t.Fatalf("task list rc=%d, want 0", rc)
	}
	if rc := runTask([]string{"focus", "14"}); rc != 0 {
		t.Fatalf("task focus rc=%d, want 0", rc)
	}
	focused, err := ipc.NewClient().FocusedTask()
	if err != nil || focused == nil || focused.TaskID != 14 {
		t.Fatalf("FocusedTask() = %+v, %v, want 14", focused, err)
	}

	if rc := runTask([]string{"move", "12", "2"}); rc != 0 {
		t.Fatalf("task move rc=%d, want 0", rc)
	}
	onTwo, err := ipc.NewClient().ListTasks(2)
	if err != nil || len(onTwo) != 1 || onTwo[0].TaskID != 12 {
		t.Fatalf("ListTasks(2) = %+v, %v", onTwo, err)
	}

	if rc := runTask([]string{"remove", "--yes", "14"}); rc != 0 {
		t.Fatalf("task remove rc=%d, want 0", rc)
	}
	if rc := runTask([]string{"remove", "--yes", "14"}); rc != 1 {
		t.Fatalf("second task remove rc=%d, want 1", rc)
	}
	if rc := runTask([]string{"inspect", "12"}); rc != 0 {
		t.Fatalf("task inspect rc=%d, want 0", rc)
	}
	if rc := runDisplay([]string{"state"}); rc != 0 {
		t.Fatalf("display state rc=%d, want 0", rc)
	}
	if rc := runStatus(nil); rc != 0 {
		t.Fatalf("status rc=%d, want 0", rc)
	}
}

func TestRunTask_BadArguments(t *testing.T) {
	tests := [][]string{
		nil,
		{"frobnicate"},
		{"focus"},
		{"focus", "abc"},
		{"move", "12"},
		{"remove", "--yes", "-1"},
	}
	for _, args := range tests {
		if rc := runTask(args); rc != 2 {
			t.Fatalf("runTask(%q) rc=%d, want 2", args, rc)
		}
	}
}

func TestRunConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("host: sim\ndisplay_id: 1\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TASKMIRROR_CONFIG", path)

	if rc := runConfig([]string{"validate"}); rc != 0 {
		t.Fatalf("config validate rc=%d, want 0", rc)
	}
	if rc := runConfig([]string{"explain", "display_id"}); rc != 0 {
		t.Fatalf("config explain rc=%d, want 0", rc)
	}
	if rc := runConfig([]string{"explain", "no.such.key"}); rc != 1 {
		t.Fatalf("config explain bad path rc=%d, want 1", rc)
	}
	if rc := runConfig([]string{"path"}); rc != 0 {
		t.Fatalf("config path rc=%d, want 0", rc)
	}

	if err := os.WriteFile(path, []byte("host: wayland\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rc := runConfig([]string{"validate"}); rc != 1 {
		t.Fatalf("config validate of bad host rc=%d, want 1", rc)
	}
}

func TestFormatSource(t *testing.T) {
	tests := []struct {
		src  config.Source
		want string
	}{
		{config.Source{Kind: config.SourceDefault}, "default"},
		{config.Source{Kind: config.SourceFile, File: "/c.yaml", Line: 3, Column: 5}, "file:/c.yaml:3:5"},
		{config.Source{Kind: config.SourceFile, File: "/c.yaml"}, "file:/c.yaml"},
		{config.Source{Kind: config.SourceEnv, File: "TASKMIRROR_HOST"}, "env:TASKMIRROR_HOST"},
	}
	for _, tt := range tests {
		if got := formatSource(tt.src); got != tt.want {
			t.Fatalf("formatSource(%+v) = %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	printTaskTable(&buf, []task.Summary{
		{TaskID: 12, DisplayID: 0, Visible: true, ActivityType: "standard", LastActiveTime: 90_000, TopApplication: "com.android.settings/com.android.settings.Settings"},
		{TaskID: 1, DisplayID: 0, ActivityType: "home"},
	})
	out := buf.String()
	if !strings.Contains(out, "TOP APPLICATION") || !strings.Contains(out, "com.android.settings/com.android.settings.Settings") {
		t.Fatalf("task table:\n%s", out)
	}
	if !strings.Contains(out, "+1m30s") || strings.Contains(out, "1970") {
		t.Fatalf("task table last active:\n%s", out)
	}

	buf.Reset()
	printStatus(&buf, &ipc.StatusData{
		Host:    "sim",
		Version: "API31",
		Display: display.State{Rotation: platform.RotationUnknown},
		Capabilities: []ipc.CapabilityData{
			{Operation: "get-focused-task", Method: "getFocusedRootTaskInfo"},
			{Operation: "move-task-to-display"},
		},
	})
	out = buf.String()
	for _, want := range []string{"display_size:   unknown", "rotation:       unknown", "get-focused-task -> getFocusedRootTaskInfo", "move-task-to-display -> unsupported"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}
