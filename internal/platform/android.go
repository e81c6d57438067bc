package platform

import "github.com/1broseidon/taskmirror/internal/attr"

// Activity types reported in WindowConfiguration.mActivityType.
const (
	ActivityTypeUndefined = 0
	ActivityTypeStandard  = 1
	ActivityTypeHome      = 2
	ActivityTypeRecents   = 3
	ActivityTypeAssistant = 4
	ActivityTypeDream     = 5
)

// Record type names used by Android-shaped hosts.
const (
	TypeRootTaskInfo        = "android.app.ActivityTaskManager$RootTaskInfo"
	TypeTaskInfo            = "android.app.TaskInfo"
	TypeStackInfo           = "android.app.ActivityManager$StackInfo"
	TypeConfiguration       = "android.content.res.Configuration"
	TypeWindowConfiguration = "android.app.WindowConfiguration"
)

// AndroidTask is a host-neutral description of one root task, used to build
// records shaped the way a given Android release shapes them.
type AndroidTask struct {
	ID           int
	DisplayID    int
	UserID       int
	Bounds       Rect
	Visible      bool
	Base         Component
	Top          Component
	ChildTaskIDs []int
	// ChildNames are the flattened components of the child tasks. When empty
	// the base component is used.
	ChildNames     []string
	ActivityType   int
	Rotation       Rotation
	LastActiveTime int64
}

// AndroidConfiguration builds a Configuration record carrying a
// WindowConfiguration.
func AndroidConfiguration(activityType int, rotation Rotation, bounds Rect) *attr.Record {
	wc := attr.NewRecord(&attr.Fields{
		Type: TypeWindowConfiguration,
		Values: map[string]any{
			"mActivityType":    activityType,
			"mDisplayRotation": int(rotation),
			"mBounds":          bounds,
			"mAppBounds":       bounds,
		},
	})
	return attr.NewRecord(&attr.Fields{
		Type:   TypeConfiguration,
		Values: map[string]any{"windowConfiguration": wc},
	})
}

// DisplayConfiguration builds the configuration a display descriptor implies:
// undefined activity type and bounds at the origin.
func DisplayConfiguration(info DisplayInfo) *attr.Record {
	bounds := Rect{Width: info.Size.Width, Height: info.Size.Height}
	return AndroidConfiguration(ActivityTypeUndefined, info.Rotation, bounds)
}

// AndroidTaskRecord builds the record a release of version v would return
// for t. API31 and later return RootTaskInfo extending TaskInfo; older
// releases return StackInfo, which has no lastActiveTime or baseActivity.
func AndroidTaskRecord(v Version, t AndroidTask) *attr.Record {
	cfg := AndroidConfiguration(t.ActivityType, t.Rotation, t.Bounds)
	names := t.ChildNames
	if len(names) == 0 && !t.Base.IsZero() {
		names = []string{t.Base.String()}
	}
	children := t.ChildTaskIDs
	if len(children) == 0 {
		children = []int{t.ID}
	}

	if v >= API31 {
		root := &attr.Fields{
			Type: TypeRootTaskInfo,
			Values: map[string]any{
				"bounds":         t.Bounds,
				"childTaskIds":   children,
				"childTaskNames": names,
				"visible":        t.Visible,
			},
		}
		info := &attr.Fields{
			Type: TypeTaskInfo,
			Values: map[string]any{
				"taskId":         t.ID,
				"displayId":      t.DisplayID,
				"userId":         t.UserID,
				"baseActivity":   t.Base,
				"topActivity":    t.Top,
				"isRunning":      true,
				"configuration":  cfg,
				"lastActiveTime": t.LastActiveTime,
			},
		}
		return attr.NewRecord(root, info)
	}

	return attr.NewRecord(&attr.Fields{
		Type: TypeStackInfo,
		Values: map[string]any{
			"stackId":       t.ID,
			"displayId":     t.DisplayID,
			"userId":        t.UserID,
			"bounds":        t.Bounds,
			"taskIds":       children,
			"taskNames":     names,
			"topActivity":   t.Top,
			"visible":       t.Visible,
			"configuration": cfg,
		},
	})
}

// ActivityTypeFromName maps the names printed by dumpsys to activity types.
func ActivityTypeFromName(name string) int {
	switch name {
	case "standard":
		return ActivityTypeStandard
	case "home":
		return ActivityTypeHome
	case "recents":
		return ActivityTypeRecents
	case "assistant":
		return ActivityTypeAssistant
	case "dream":
		return ActivityTypeDream
	}
	return ActivityTypeUndefined
}
