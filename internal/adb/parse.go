package adb

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/1broseidon/taskmirror/internal/platform"
)

// stackEntry is one root task (a stack before Android 12) from "am stack list".
type stackEntry struct {
	ID           int
	DisplayID    int
	UserID       int
	Bounds       platform.Rect
	ActivityType int
	Rotation     platform.Rotation
	Tasks        []taskEntry
}

// taskEntry is one child task line of a stack.
type taskEntry struct {
	ID        int
	Name      string
	Component platform.Component
	Visible   bool
	Top       platform.Component
}

var (
	stackHeaderRe  = regexp.MustCompile(`^\s*(?:RootTask|Stack) id=(\d+)(.*)$`)
	boundsRe       = regexp.MustCompile(`bounds=\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)
	displayIDRe    = regexp.MustCompile(`displayId=(\d+)`)
	userIDRe       = regexp.MustCompile(`userId=(\d+)`)
	activityTypeRe = regexp.MustCompile(`mActivityType=(\w+)`)
	rotationRe     = regexp.MustCompile(`m(?:Display)?Rotation=ROTATION_(\d+)`)
	taskLineRe     = regexp.MustCompile(`^\s*taskId=(\d+): (\S+)(.*)$`)
	visibleRe      = regexp.MustCompile(`visible=(true|false)`)
	topActivityRe  = regexp.MustCompile(`topActivity=ComponentInfo\{([^}]+)\}`)

	resumedRe = regexp.MustCompile(`(?:mResumedActivity|ResumedActivity|topResumedActivity)[:=]\s*ActivityRecord\{\S+ u\d+ (\S+) t(\d+)`)

	displayInfoRe = regexp.MustCompile(`m(Override|Base)DisplayInfo=DisplayInfo\{"([^"]*)", displayId (\d+)(.*)$`)
	realSizeRe    = regexp.MustCompile(`real (\d+) x (\d+)`)
	dispRotRe     = regexp.MustCompile(`, rotation (\d)`)
	densityRe     = regexp.MustCompile(`density (\d+)`)
)

// parseStackList parses the output of "am stack list".
func parseStackList(out string) ([]stackEntry, error) {
	var stacks []stackEntry
	var cur *stackEntry

	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()

		if m := stackHeaderRe.FindStringSubmatch(line); m != nil {
			id, _ := strconv.Atoi(m[1])
			stacks = append(stacks, stackEntry{
				ID:        id,
				DisplayID: atoiMatch(displayIDRe, m[2], 0),
				UserID:    atoiMatch(userIDRe, m[2], 0),
				Bounds:    parseBounds(m[2]),
				Rotation:  platform.RotationUnknown,
			})
			cur = &stacks[len(stacks)-1]
			continue
		}
		if cur == nil {
			continue
		}

		if strings.Contains(line, "configuration=") {
			if m := activityTypeRe.FindStringSubmatch(line); m != nil {
				cur.ActivityType = platform.ActivityTypeFromName(m[1])
			}
			if m := rotationRe.FindStringSubmatch(line); m != nil {
				deg, _ := strconv.Atoi(m[1])
				cur.Rotation = platform.Rotation(deg / 90)
			}
			continue
		}

		if m := taskLineRe.FindStringSubmatch(line); m != nil {
			id, _ := strconv.Atoi(m[1])
			t := taskEntry{ID: id, Name: m[2]}
			if c, err := platform.ParseComponent(m[2]); err == nil {
				t.Component = c
				t.Name = c.String()
			}
			if v := visibleRe.FindStringSubmatch(m[3]); v != nil {
				t.Visible = v[1] == "true"
			}
			if top := topActivityRe.FindStringSubmatch(m[3]); top != nil {
				if c, err := platform.ParseComponent(top[1]); err == nil {
					t.Top = c
				}
			}
			cur.Tasks = append(cur.Tasks, t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stack list: %w", err)
	}
	return stacks, nil
}

// androidTask converts a stack entry for record building.
func (s stackEntry) androidTask() platform.AndroidTask {
	t := platform.AndroidTask{
		ID:           s.ID,
		DisplayID:    s.DisplayID,
		UserID:       s.UserID,
		Bounds:       s.Bounds,
		ActivityType: s.ActivityType,
		Rotation:     s.Rotation,
	}
	if !t.Rotation.Valid() {
		t.Rotation = platform.Rotation0
	}
	for _, child := range s.Tasks {
		t.ChildTaskIDs = append(t.ChildTaskIDs, child.ID)
		t.ChildNames = append(t.ChildNames, child.Name)
		if child.Visible {
			t.Visible = true
		}
	}
	if len(s.Tasks) > 0 {
		t.Base = s.Tasks[0].Component
		t.Top = s.Tasks[0].Top
		if t.Top.IsZero() {
			t.Top = t.Base
		}
	}
	return t
}

func (s stackEntry) contains(taskID int) bool {
	if s.ID == taskID {
		return true
	}
	for _, t := range s.Tasks {
		if t.ID == taskID {
			return true
		}
	}
	return false
}

// parseResumedTask extracts the task id of the resumed activity from
// "dumpsys activity activities".
func parseResumedTask(out string) (int, bool) {
	m := resumedRe.FindStringSubmatch(out)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return id, true
}

// parseDisplays parses the DisplayInfo lines of "dumpsys display". Override
// info wins over base info for the same display.
func parseDisplays(out string) map[int]platform.DisplayInfo {
	displays := make(map[int]platform.DisplayInfo)
	overridden := make(map[int]bool)

	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := displayInfoRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[3])
		isOverride := m[1] == "Override"
		if overridden[id] && !isOverride {
			continue
		}

		rest := m[4]
		info := platform.DisplayInfo{ID: id, Name: m[2]}
		if s := realSizeRe.FindStringSubmatch(rest); s != nil {
			info.Size.Width, _ = strconv.Atoi(s[1])
			info.Size.Height, _ = strconv.Atoi(s[2])
		}
		info.Rotation = platform.Rotation(atoiMatch(dispRotRe, rest, 0))
		info.Density = atoiMatch(densityRe, rest, 0)

		displays[id] = info
		if isOverride {
			overridden[id] = true
		}
	}
	return displays
}

func parseBounds(s string) platform.Rect {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return platform.Rect{}
	}
	l, _ := strconv.Atoi(m[1])
	t, _ := strconv.Atoi(m[2])
	r, _ := strconv.Atoi(m[3])
	b, _ := strconv.Atoi(m[4])
	return platform.Rect{X: l, Y: t, Width: r - l, Height: b - t}
}

func atoiMatch(re *regexp.Regexp, s string, def int) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return def
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return def
	}
	return n
}

// parseSDK parses "getprop ro.build.version.sdk".
func parseSDK(out string) (platform.Version, error) {
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unexpected sdk level %q", strings.TrimSpace(out))
	}
	return platform.Version(n), nil
}
