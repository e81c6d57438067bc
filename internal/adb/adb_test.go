package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/task"
)

const stackListAndroid12 = `RootTask id=1 bounds=[0,0][1080,2340] displayId=0 userId=0
 configuration={1.0 ?mcc?mnc [en_US] ldltr sw392dp w392dp h791dp 440dpi nrml long port finger -keyb/v/h -nav/h winConfig={ mBounds=Rect(0, 0 - 1080, 2340) mAppBounds=Rect(0, 0 - 1080, 2274) mWindowingMode=fullscreen mDisplayWindowingMode=fullscreen mActivityType=home mAlwaysOnTop=undefined mRotation=ROTATION_0} s.6}
 taskId=25: com.android.launcher3/.uioverrides.QuickstepLauncher bounds=[0,0][1080,2340] userId=0 visible=false topActivity=ComponentInfo{com.android.launcher3/com.android.launcher3.uioverrides.QuickstepLauncher}

RootTask id=31 bounds=[0,0][2340,1080] displayId=0 userId=0
 configuration={1.0 ?mcc?mnc [en_US] ldltr sw392dp w791dp h392dp 440dpi nrml long land finger -keyb/v/h -nav/h winConfig={ mBounds=Rect(0, 0 - 2340, 1080) mAppBounds=Rect(0, 0 - 2274, 1080) mWindowingMode=fullscreen mDisplayWindowingMode=fullscreen mActivityType=standard mAlwaysOnTop=undefined mRotation=ROTATION_90} s.9}
 taskId=31: com.android.settings/.Settings bounds=[0,0][2340,1080] userId=0 visible=true topActivity=ComponentInfo{com.android.settings/com.android.settings.SubSettings}

RootTask id=40 bounds=[0,0][1920,1080] displayId=2 userId=0
 configuration={1.0 winConfig={ mBounds=Rect(0, 0 - 1920, 1080) mActivityType=standard mRotation=ROTATION_0} s.1}
 taskId=40: org.mozilla.firefox/org.mozilla.fenix.HomeActivity bounds=[0,0][1920,1080] userId=0 visible=true topActivity=ComponentInfo{org.mozilla.firefox/org.mozilla.fenix.HomeActivity}
`

const stackListAndroid10 = `Stack id=3 bounds=[0,0][1080,1920] displayId=0 userId=0
 configuration={1.0 winConfig={ mBounds=Rect(0, 0 - 1080, 1920) mActivityType=standard mRotation=ROTATION_0} s.2}
 taskId=7: com.example/.Main bounds=[0,0][1080,1920] userId=0 visible=true topActivity=ComponentInfo{com.example/com.example.Detail}
 taskId=5: com.example/.Other bounds=[0,0][1080,1920] userId=0 visible=false topActivity=ComponentInfo{com.example/com.example.Other}
Stack id=0 bounds=[0,0][1080,1920] displayId=0 userId=0
 configuration={1.0 winConfig={ mActivityType=home mRotation=ROTATION_0} s.1}
 taskId=2: com.android.launcher3/.Launcher bounds=[0,0][1080,1920] userId=0 visible=false
`

const activitiesAndroid12 = `ACTIVITY MANAGER ACTIVITIES (dumpsys activity activities)
Display #0 (activities from top to bottom):
  * Task{8e0d8f4 #31 type=standard A=1000:com.android.settings U=0 visible=true mode=fullscreen translucent=false sz=1}
    topResumedActivity=ActivityRecord{2f1c0a1 u0 com.android.settings/.SubSettings t31}
  ResumedActivity: ActivityRecord{2f1c0a1 u0 com.android.settings/.SubSettings t31}
`

const dumpsysDisplay = `DISPLAY MANAGER (dumpsys display)
  Display 0:
    mDisplayId=0
    mBaseDisplayInfo=DisplayInfo{"Built-in Screen", displayId 0, FLAG_SECURE, real 1080 x 2340, largest app 2340 x 2274, smallest app 1080 x 1014, appVsyncOff 1000000, presDeadline 16666666, mode 1, defaultMode 1, rotation 0, density 440 (440.0 x 440.0) dpi}
    mOverrideDisplayInfo=DisplayInfo{"Built-in Screen", displayId 0, FLAG_SECURE, real 2340 x 1080, largest app 2340 x 2274, smallest app 1080 x 1014, appVsyncOff 1000000, presDeadline 16666666, mode 1, defaultMode 1, rotation 1, density 440 (440.0 x 440.0) dpi}
  Display 2:
    mBaseDisplayInfo=DisplayInfo{"HDMI Screen", displayId 2, real 1920 x 1080, rotation 0, density 160 (160.0 x 160.0) dpi}
`

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) Shell(_ context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	for prefix, out := range f.outputs {
		if strings.HasPrefix(key, prefix) {
			return out, nil
		}
	}
	return "", nil
}

func (f *fakeRunner) called(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func newRunner(sdk int, stacks string) *fakeRunner {
	return &fakeRunner{
		outputs: map[string]string{
			"getprop ro.build.version.sdk": fmt.Sprintf("%d\n", sdk),
			"am stack list":                stacks,
			"dumpsys activity activities":  activitiesAndroid12,
			"dumpsys display":              dumpsysDisplay,
		},
		errs: map[string]error{},
	}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)) }

func newController(t *testing.T, r Runner) (*Host, *task.Controller) {
	t.Helper()
	h, err := New(context.Background(), r, Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res := capability.NewResolver(h.Tasks(), h.Version(), capability.AndroidTable())
	return h, task.NewController(res, task.WithLogger(quiet()))
}

func TestParseStackList_Android12(t *testing.T) {
	stacks, err := parseStackList(stackListAndroid12)
	if err != nil {
		t.Fatalf("parseStackList() error: %v", err)
	}
	if len(stacks) != 3 {
		t.Fatalf("parseStackList() = %d stacks, want 3", len(stacks))
	}
	s := stacks[1]
	if s.ID != 31 || s.DisplayID != 0 || s.ActivityType != platform.ActivityTypeStandard || s.Rotation != platform.Rotation90 {
		t.Fatalf("stack[1] = %+v", s)
	}
	if s.Bounds != (platform.Rect{Width: 2340, Height: 1080}) {
		t.Fatalf("stack[1].Bounds = %v", s.Bounds)
	}
	if len(s.Tasks) != 1 || s.Tasks[0].Component.Class != "com.android.settings.Settings" || !s.Tasks[0].Visible {
		t.Fatalf("stack[1].Tasks = %+v", s.Tasks)
	}
	if s.Tasks[0].Top.Class != "com.android.settings.SubSettings" {
		t.Fatalf("stack[1] top = %v", s.Tasks[0].Top)
	}
	if stacks[0].ActivityType != platform.ActivityTypeHome || stacks[2].DisplayID != 2 {
		t.Fatalf("stacks = %+v", stacks)
	}
}

func TestParseStackList_Android10(t *testing.T) {
	stacks, err := parseStackList(stackListAndroid10)
	if err != nil {
		t.Fatalf("parseStackList() error: %v", err)
	}
	if len(stacks) != 2 || len(stacks[0].Tasks) != 2 {
		t.Fatalf("parseStackList() = %+v", stacks)
	}
	at := stacks[0].androidTask()
	if !at.Visible || at.Base.Class != "com.example.Main" || at.Top.Class != "com.example.Detail" {
		t.Fatalf("androidTask() = %+v", at)
	}
	if len(at.ChildNames) != 2 || at.ChildNames[1] != "com.example/com.example.Other" {
		t.Fatalf("ChildNames = %v", at.ChildNames)
	}
	if !stacks[0].contains(5) || stacks[0].contains(2) {
		t.Fatal("contains() mismatch")
	}
}

func TestParseResumedTask(t *testing.T) {
	id, ok := parseResumedTask(activitiesAndroid12)
	if !ok || id != 31 {
		t.Fatalf("parseResumedTask() = %d, %v, want 31", id, ok)
	}
	old := "  mResumedActivity: ActivityRecord{6c2b3f9 u0 com.example/.Main t7}\n"
	if id, ok := parseResumedTask(old); !ok || id != 7 {
		t.Fatalf("parseResumedTask(old) = %d, %v, want 7", id, ok)
	}
	if _, ok := parseResumedTask("nothing resumed"); ok {
		t.Fatal("parseResumedTask() ok = true")
	}
}

func TestParseDisplays_OverrideWins(t *testing.T) {
	displays := parseDisplays(dumpsysDisplay)
	if len(displays) != 2 {
		t.Fatalf("parseDisplays() = %+v", displays)
	}
	d0 := displays[0]
	if d0.Size != (platform.Size{Width: 2340, Height: 1080}) || d0.Rotation != platform.Rotation90 || d0.Density != 440 {
		t.Fatalf("display 0 = %+v", d0)
	}
	if displays[2].Name != "HDMI Screen" || displays[2].Size.Width != 1920 {
		t.Fatalf("display 2 = %+v", displays[2])
	}
}

func TestParseSDK(t *testing.T) {
	if v, err := parseSDK("31\r\n"); err != nil || v != platform.API31 {
		t.Fatalf("parseSDK() = %v, %v", v, err)
	}
	if _, err := parseSDK("error: no devices"); err == nil {
		t.Fatal("parseSDK() accepted garbage")
	}
}

func TestHost_Android12(t *testing.T) {
	r := newRunner(31, stackListAndroid12)
	h, c := newController(t, r)
	if h.Version() != platform.API31 {
		t.Fatalf("Version() = %v", h.Version())
	}

	focused := c.FocusedTask()
	if focused == nil || focused.TaskID() != 31 {
		t.Fatalf("FocusedTask() = %v, want 31", focused)
	}
	if base, err := focused.BaseApplication(); err != nil || base.Package != "com.android.settings" {
		t.Fatalf("BaseApplication() = %v, %v", base, err)
	}
	if focused.ActivityType() != task.ActivityStandard {
		t.Fatalf("ActivityType() = %v", focused.ActivityType())
	}

	onSecond, ok := c.TasksOnDisplay(2)
	if !ok || len(onSecond) != 1 || onSecond[0].TaskID() != 40 {
		t.Fatalf("TasksOnDisplay(2) = %v, %v", onSecond, ok)
	}

	c.MoveTaskToDisplay(31, 2)
	if r.called("am display move-stack 31 2") != 1 {
		t.Fatalf("calls = %v", r.calls)
	}

	c.SetFocusedTask(40)
	if r.called("am start --user 0 --activity-reorder-to-front -n org.mozilla.firefox/org.mozilla.fenix.HomeActivity") != 1 {
		t.Fatalf("calls = %v", r.calls)
	}

	if removed, ok := c.RemoveTask(999); removed || !ok {
		t.Fatalf("RemoveTask(999) = %v, %v, want false, true", removed, ok)
	}
	if r.called("am stack remove") != 0 {
		t.Fatal("remove issued for a missing task")
	}
	if removed, ok := c.RemoveTask(40); !removed || !ok {
		t.Fatalf("RemoveTask(40) = %v, %v", removed, ok)
	}
}

func TestHost_Android10FallsBackAndReadsTaskNames(t *testing.T) {
	r := newRunner(29, stackListAndroid10)
	_, c := newController(t, r)

	if _, err := c.Resolver().Resolve(capability.ListTasksOnDisplay); err == nil {
		t.Fatal("android 10 resolved a per-display listing")
	}
	tasks, ok := c.TasksOnDisplay(0)
	if !ok || len(tasks) != 2 {
		t.Fatalf("TasksOnDisplay(0) = %v, %v", tasks, ok)
	}
	base, err := tasks[0].BaseApplication()
	if err != nil || base.Class != "com.example.Main" {
		t.Fatalf("BaseApplication() = %v, %v", base, err)
	}
	if tasks[0].LastActiveTime() != 0 {
		t.Fatal("LastActiveTime() != 0 on android 10")
	}
}

func TestHost_ShellErrorsSurface(t *testing.T) {
	r := newRunner(31, stackListAndroid12)
	r.outputs["am stack remove"] = "Error: java.lang.SecurityException: permission denied\n"
	_, c := newController(t, r)

	if removed, ok := c.RemoveTask(31); removed || ok {
		t.Fatalf("RemoveTask() = %v, %v, want false, false", removed, ok)
	}

	r.errs["am stack list"] = errors.New("device offline")
	if _, ok := c.AllTasks(); ok {
		t.Fatal("AllTasks() ok = true with device offline")
	}
}

func TestHost_DisplayAndConfiguration(t *testing.T) {
	r := newRunner(31, stackListAndroid12)
	h, _ := newController(t, r)

	info, ok := h.DisplayInfo(0)
	if !ok || info.Size.Width != 2340 {
		t.Fatalf("DisplayInfo(0) = %+v, %v", info, ok)
	}
	if _, ok := h.DisplayInfo(5); ok {
		t.Fatal("DisplayInfo(5) ok = true")
	}
	calls := len(r.calls)
	cfg, ok := h.Configuration(info)
	if !ok {
		t.Fatal("Configuration(info) ok = false")
	}
	if len(r.calls) != calls {
		t.Fatalf("Configuration() ran %v, want no shell commands", r.calls[calls:])
	}
	type getter interface{ Get(string) (any, bool) }
	wc, _ := cfg.(getter).Get("windowConfiguration")
	if rot, _ := wc.(getter).Get("mDisplayRotation"); rot != 1 {
		t.Fatalf("mDisplayRotation = %v, want 1", rot)
	}
}

func TestNew_SDKOverrideSkipsDetection(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{"getprop ro.build.version.sdk": errors.New("offline")}}
	h, err := New(context.Background(), r, Options{SDKOverride: 30, Logger: quiet()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if h.Version() != platform.API30 || len(r.calls) != 0 {
		t.Fatalf("Version() = %v, calls = %v", h.Version(), r.calls)
	}

	if _, err := New(context.Background(), r, Options{Logger: quiet()}); err == nil {
		t.Fatal("New() without override succeeded against an offline device")
	}
}
