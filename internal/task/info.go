// Package task reads task records returned by the host and drives the task
// operations of the host's task-management service.
package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/platform"
)

const (
	// InvalidTaskID is returned when a record carries no task id.
	InvalidTaskID = -1
	// InvalidDisplayID is returned when a record carries no display id.
	InvalidDisplayID = -1
)

var (
	// ErrNilRecord is returned by NewInfo for a nil record.
	ErrNilRecord = errors.New("nil task record")
	// ErrNoBaseApplication reports that the base application cannot be
	// determined from the record.
	ErrNoBaseApplication = errors.New("base application unavailable")
)

// ActivityType classifies what a task hosts.
type ActivityType int

const (
	ActivityUndefined ActivityType = platform.ActivityTypeUndefined
	ActivityStandard  ActivityType = platform.ActivityTypeStandard
	ActivityHome      ActivityType = platform.ActivityTypeHome
	ActivityRecents   ActivityType = platform.ActivityTypeRecents
	ActivityAssistant ActivityType = platform.ActivityTypeAssistant
	ActivityDream     ActivityType = platform.ActivityTypeDream
)

func (a ActivityType) String() string {
	switch a {
	case ActivityStandard:
		return "standard"
	case ActivityHome:
		return "home"
	case ActivityRecents:
		return "recents"
	case ActivityAssistant:
		return "assistant"
	case ActivityDream:
		return "dream"
	}
	return "undefined"
}

// FieldTable names the record attributes backing each Info accessor. An
// empty name means the host version has no such attribute.
type FieldTable struct {
	TaskID         string
	DisplayID      string
	LastActiveTime string
	BaseActivity   string
	// TaskNames is the legacy string array whose first entry is the base
	// component, used when BaseActivity is empty.
	TaskNames     string
	TopActivity   string
	Visible       string
	Configuration string
}

// FieldsFor returns the field table for a host version.
func FieldsFor(v platform.Version) FieldTable {
	ft := FieldTable{
		DisplayID:     "displayId",
		TopActivity:   "topActivity",
		Visible:       "visible",
		Configuration: "configuration",
	}
	if v >= platform.API31 {
		ft.TaskID = "taskId"
		ft.LastActiveTime = "lastActiveTime"
		ft.BaseActivity = "baseActivity"
		return ft
	}
	ft.TaskID = "stackId"
	ft.TaskNames = "taskNames"
	return ft
}

// Info is a read-only view over one task record.
type Info struct {
	rec    attr.Source
	fields FieldTable
}

// NewInfo wraps rec using the field table of version v.
func NewInfo(rec attr.Source, v platform.Version) (*Info, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}
	if r, ok := rec.(*attr.Record); ok && r == nil {
		return nil, ErrNilRecord
	}
	return &Info{rec: rec, fields: FieldsFor(v)}, nil
}

// Record returns the underlying record.
func (i *Info) Record() attr.Source { return i.rec }

func (i *Info) TaskID() int {
	if id, ok := attr.Int(i.rec, i.fields.TaskID); ok {
		return id
	}
	return InvalidTaskID
}

func (i *Info) DisplayID() int {
	if id, ok := attr.Int(i.rec, i.fields.DisplayID); ok {
		return id
	}
	return InvalidDisplayID
}

// LastActiveTime is 0 when the host version does not record it or the
// record lacks it. The value is milliseconds on the host's monotonic clock
// (uptime on Android, server time on X11), not wall time.
func (i *Info) LastActiveTime() int64 {
	if i.fields.LastActiveTime == "" {
		return 0
	}
	t, _ := attr.Int64(i.rec, i.fields.LastActiveTime)
	return t
}

// BaseApplication returns the component that started the task. Older hosts
// only carry it as the first entry of the task name array; an empty or
// malformed array yields ErrNoBaseApplication.
func (i *Info) BaseApplication() (platform.Component, error) {
	if i.fields.BaseActivity != "" {
		v, ok := attr.Get(i.rec, i.fields.BaseActivity)
		if !ok {
			return platform.Component{}, ErrNoBaseApplication
		}
		c, ok := componentOf(v)
		if !ok {
			return platform.Component{}, ErrNoBaseApplication
		}
		return c, nil
	}

	names, ok := attr.Strings(i.rec, i.fields.TaskNames)
	if !ok || len(names) == 0 {
		return platform.Component{}, ErrNoBaseApplication
	}
	c, err := platform.ParseComponent(names[0])
	if err != nil {
		return platform.Component{}, fmt.Errorf("%w: %v", ErrNoBaseApplication, err)
	}
	return c, nil
}

// TopApplication returns the component on top of the task, if known.
func (i *Info) TopApplication() (platform.Component, bool) {
	v, ok := attr.Get(i.rec, i.fields.TopActivity)
	if !ok {
		return platform.Component{}, false
	}
	return componentOf(v)
}

func (i *Info) Visible() bool {
	b, _ := attr.Bool(i.rec, i.fields.Visible)
	return b
}

// Configuration returns the embedded configuration record.
func (i *Info) Configuration() (attr.Source, bool) {
	return attr.Sub(i.rec, i.fields.Configuration)
}

// ActivityType reads configuration.windowConfiguration.mActivityType.
func (i *Info) ActivityType() ActivityType {
	cfg, ok := i.Configuration()
	if !ok {
		return ActivityUndefined
	}
	wc, ok := attr.Sub(cfg, "windowConfiguration")
	if !ok {
		return ActivityUndefined
	}
	n, ok := attr.Int(wc, "mActivityType")
	if !ok {
		return ActivityUndefined
	}
	return ActivityType(n)
}

func componentOf(v any) (platform.Component, bool) {
	switch c := v.(type) {
	case platform.Component:
		return c, !c.IsZero()
	case *platform.Component:
		if c == nil || c.IsZero() {
			return platform.Component{}, false
		}
		return *c, true
	case string:
		parsed, err := platform.ParseComponent(c)
		return parsed, err == nil
	}
	return platform.Component{}, false
}

// Summary is a flat, serializable snapshot of an Info.
type Summary struct {
	TaskID          int    `json:"task_id"`
	DisplayID       int    `json:"display_id"`
	BaseApplication string `json:"base_application,omitempty"`
	TopApplication  string `json:"top_application,omitempty"`
	Visible         bool   `json:"visible"`
	ActivityType    string `json:"activity_type"`
	LastActiveTime  int64  `json:"last_active_time,omitempty"`
}

// ActiveClock renders the last-active time as an offset on the host clock,
// or "-" when it is not recorded.
func (s Summary) ActiveClock() string {
	if s.LastActiveTime <= 0 {
		return "-"
	}
	return "+" + (time.Duration(s.LastActiveTime) * time.Millisecond).String()
}

// Summary snapshots every accessor.
func (i *Info) Summary() Summary {
	s := Summary{
		TaskID:         i.TaskID(),
		DisplayID:      i.DisplayID(),
		Visible:        i.Visible(),
		ActivityType:   i.ActivityType().String(),
		LastActiveTime: i.LastActiveTime(),
	}
	if c, err := i.BaseApplication(); err == nil {
		s.BaseApplication = c.String()
	}
	if c, ok := i.TopApplication(); ok {
		s.TopApplication = c.String()
	}
	return s
}

// Summaries snapshots a task list.
func Summaries(infos []*Info) []Summary {
	out := make([]Summary, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Summary())
	}
	return out
}
