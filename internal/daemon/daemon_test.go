package daemon

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/config"
	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/logging"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/simhost"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.New(config.LoggingConfig{Level: "debug"}, io.Discard)
	if err != nil {
		t.Fatalf("logging.New() error: %v", err)
	}
	return l
}

// pollingHost hides the simulated host's event stream so the watcher polls.
type pollingHost struct {
	platform.Host
	platform.ConfigurationSource
}

func newPollingHost(h *simhost.Host) pollingHost {
	return pollingHost{Host: h, ConfigurationSource: h}
}

func TestSession_CoalescesInvalidations(t *testing.T) {
	s := NewSession(nil)
	if s.ID == "" {
		t.Fatal("session id is empty")
	}
	s.Invalidate()
	s.Invalidate()
	s.Invalidate()

	if got := s.Generation(); got != 3 {
		t.Fatalf("Generation() = %d, want 3", got)
	}
	select {
	case <-s.Invalidated():
	default:
		t.Fatal("no invalidation signalled")
	}
	select {
	case <-s.Invalidated():
		t.Fatal("invalidations were not coalesced")
	default:
	}
	if s.LastInvalidated().IsZero() {
		t.Fatal("LastInvalidated() is zero")
	}
}

func TestWatcher_PollNow(t *testing.T) {
	h := simhost.NewDefault(platform.API31)
	session := NewSession(nil)
	tracker := display.NewTracker(0, h, session)
	tracker.Prime()
	w := NewWatcher(WatcherConfig{Interval: time.Hour}, tracker, newPollingHost(h))

	w.PollNow()
	if got := session.Generation(); got != 0 {
		t.Fatalf("generation after unchanged poll = %d, want 0", got)
	}

	h.SetDisplay(platform.DisplayInfo{ID: 0, Size: platform.Size{Width: 2340, Height: 1080}, Rotation: platform.Rotation90})
	w.PollNow()
	if got := session.Generation(); got != 2 {
		t.Fatalf("generation after size and rotation change = %d, want 2", got)
	}

	h.RemoveDisplay(0)
	w.PollNow()
	w.PollNow()
	if got := session.Generation(); got != 3 {
		t.Fatalf("generation after display removal = %d, want 3", got)
	}
	if tracker.State().SizeKnown {
		t.Fatal("size still known after removal")
	}
}

// vanishingDisplays reports the wrapped display on the first query only.
type vanishingDisplays struct {
	platform.DisplayService
	queries int
}

func (v *vanishingDisplays) DisplayInfo(id int) (platform.DisplayInfo, bool) {
	v.queries++
	if v.queries > 1 {
		return platform.DisplayInfo{}, false
	}
	return v.DisplayService.DisplayInfo(id)
}

type countingConfigs struct {
	platform.ConfigurationSource
	calls int
}

func (c *countingConfigs) Configuration(info platform.DisplayInfo) (attr.Source, bool) {
	c.calls++
	return c.ConfigurationSource.Configuration(info)
}

type vanishingHost struct {
	platform.Host
	*countingConfigs
	displays *vanishingDisplays
}

func (h vanishingHost) Displays() platform.DisplayService { return h.displays }

func TestWatcher_PollQueriesDisplayOncePerPass(t *testing.T) {
	h := simhost.NewDefault(platform.API31)
	displays := &vanishingDisplays{DisplayService: h}
	configs := &countingConfigs{ConfigurationSource: h}
	host := vanishingHost{Host: h, countingConfigs: configs, displays: displays}

	var logs bytes.Buffer
	session := NewSession(nil)
	tracker := display.NewTracker(0, displays, session,
		display.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	w := NewWatcher(WatcherConfig{Interval: time.Hour}, tracker, host)

	for range 4 {
		w.PollNow()
	}

	if displays.queries != 4 {
		t.Fatalf("DisplayInfo queries = %d, want 4", displays.queries)
	}
	if configs.calls != 1 {
		t.Fatalf("Configuration calls = %d, want 1", configs.calls)
	}
	// Size and rotation learned on the first pass, then one disappearance.
	if got := session.Generation(); got != 3 {
		t.Fatalf("Generation() = %d, want 3", got)
	}
	if n := strings.Count(logs.String(), "tracked display disappeared"); n != 1 {
		t.Fatalf("disappearance logged %d times, want 1", n)
	}
	if tracker.State().SizeKnown {
		t.Fatal("size still known after the display vanished")
	}
}

func TestWatcher_FollowsEvents(t *testing.T) {
	h := simhost.NewDefault(platform.API31)
	session := NewSession(nil)
	tracker := display.NewTracker(0, h, session)
	tracker.Prime()
	w := NewWatcher(WatcherConfig{Interval: time.Hour}, tracker, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Wait for the subscription before changing the display.
	deadline := time.Now().Add(2 * time.Second)
	for session.Generation() == 0 && time.Now().Before(deadline) {
		if err := h.Rotate(0, platform.Rotation180); err != nil {
			t.Fatalf("Rotate() error: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if session.Generation() != 1 {
		t.Fatalf("generation = %d, want 1", session.Generation())
	}
	if tracker.State().Rotation != platform.Rotation180 {
		t.Fatalf("rotation = %v, want 180", tracker.State().Rotation)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewSimHost_ConfiguredDisplays(t *testing.T) {
	h := NewSimHost(config.SimConfig{
		Version: 30,
		Displays: []config.SimDisplay{
			{ID: 0, Width: 1440, Height: 3120},
			{ID: 3, Name: "Cast", Width: 1920, Height: 1080, Rotation: 1},
		},
	})
	if h.Version() != platform.API30 {
		t.Fatalf("Version() = %v, want API30", h.Version())
	}
	info, ok := h.DisplayInfo(3)
	if !ok || info.Name != "Cast" || info.Rotation != platform.Rotation90 {
		t.Fatalf("DisplayInfo(3) = %+v, %v", info, ok)
	}
	if info, _ := h.DisplayInfo(0); info.Size.Width != 1440 {
		t.Fatalf("display 0 width = %d, want 1440", info.Size.Width)
	}
}

func TestOpenHost_Sim(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Host = config.HostSim
	h, table, err := OpenHost(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("OpenHost() error: %v", err)
	}
	defer h.Close()
	if h.Name() != "sim" {
		t.Fatalf("Name() = %q", h.Name())
	}
	if _, ok := table[capability.GetFocusedTask]; !ok {
		t.Fatal("capability table missing get-focused-task")
	}

	cfg.Host = "wayland"
	if _, _, err := OpenHost(context.Background(), cfg, nil); err == nil {
		t.Fatal("OpenHost(wayland) succeeded")
	}
}

func TestRestartKeys(t *testing.T) {
	prev := config.DefaultConfig()
	next := config.DefaultConfig()
	next.PollInterval = 5 * time.Second
	next.Logging.Level = "debug"
	if keys := restartKeys(prev, next); len(keys) != 0 {
		t.Fatalf("restartKeys() = %v, want none", keys)
	}
	next.DisplayID = 1
	next.ADB.Serial = "abc"
	got := strings.Join(restartKeys(prev, next), ",")
	if got != "display_id,adb" {
		t.Fatalf("restartKeys() = %q", got)
	}
}

func TestDaemon_ReloadAndStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("host: sim\nlogging:\n  level: info\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	logger := testLogger(t)
	d := New(res.Config, path, NewSimHost(res.Config.Sim), capability.AndroidTable(), logger)
	defer d.Close()

	if err := os.WriteFile(path, []byte("host: sim\npoll_interval: 2s\nlogging:\n  level: error\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := d.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if d.Config().PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", d.Config().PollInterval)
	}
	if logger.Level.Level().String() != "ERROR" {
		t.Fatalf("log level = %v, want ERROR", logger.Level.Level())
	}

	if err := os.WriteFile(path, []byte("host: [broken\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := d.Reload(); err == nil {
		t.Fatal("Reload() of broken file succeeded")
	}
	if d.Config().PollInterval != 2*time.Second {
		t.Fatal("failed reload replaced the config")
	}

	d.Tasks().FocusedTask()
	status := d.Status()
	if status.Host != "sim" || status.SessionID != d.Session().ID {
		t.Fatalf("Status() = %+v", status)
	}
	if len(status.Capabilities) != 1 || status.Capabilities[0].Method != "getFocusedRootTaskInfo" {
		t.Fatalf("capabilities = %+v", status.Capabilities)
	}
}

func TestDaemon_RunServesIPC(t *testing.T) {
	dir, err := os.MkdirTemp("", "tm-d")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	defer os.RemoveAll(dir)
	t.Setenv("TASKMIRROR_SOCKET", filepath.Join(dir, "d.sock"))

	cfg := config.DefaultConfig()
	cfg.Host = config.HostSim
	host := NewSimHost(cfg.Sim)
	d := New(cfg, "", host, capability.AndroidTable(), testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	client := ipc.NewClient()
	var status *ipc.StatusData
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if status, err = client.GetStatus(); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if !status.Display.SizeKnown || status.Display.Size.Height != 2340 {
		t.Fatalf("status display = %+v", status.Display)
	}

	for time.Now().Before(deadline) && d.Session().Generation() == 0 {
		host.SetDisplay(platform.DisplayInfo{ID: 0, Size: platform.Size{Width: 2340, Height: 1080}})
		time.Sleep(10 * time.Millisecond)
	}
	state, err := client.GetDisplayState()
	if err != nil {
		t.Fatalf("GetDisplayState() error: %v", err)
	}
	if state.State.Size.Width != 2340 {
		t.Fatalf("display state = %+v", state.State)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}
}
