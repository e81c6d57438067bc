package mcp

import (
	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/task"
)

// EmptyInput is the input for tools that take no arguments.
type EmptyInput struct{}

// FocusedTaskOutput is the output for the get_focused_task tool.
type FocusedTaskOutput struct {
	Focused bool          `json:"focused"`
	Task    *task.Summary `json:"task,omitempty"`
}

// ListTasksInput is the input for the list_tasks tool.
type ListTasksInput struct {
	DisplayID *int `json:"display_id,omitempty" jsonschema:"Only list tasks on this display. Omit to list tasks on every display."`
}

// ListTasksOutput is the output for the list_tasks tool.
type ListTasksOutput struct {
	Tasks []task.Summary `json:"tasks"`
	Count int            `json:"count"`
}

// TaskInput identifies one task by id.
type TaskInput struct {
	TaskID int `json:"task_id" jsonschema:"Task id as reported by list_tasks"`
}

// RemoveTaskOutput is the output for the remove_task tool.
type RemoveTaskOutput struct {
	TaskID  int  `json:"task_id"`
	Removed bool `json:"removed"`
}

// FocusTaskOutput is the output for the focus_task tool.
type FocusTaskOutput struct {
	TaskID  int  `json:"task_id"`
	Focused bool `json:"focused"`
}

// MoveTaskInput is the input for the move_task_to_display tool.
type MoveTaskInput struct {
	TaskID    int `json:"task_id" jsonschema:"Task id as reported by list_tasks"`
	DisplayID int `json:"display_id" jsonschema:"Target display id"`
}

// MoveTaskOutput is the output for the move_task_to_display tool.
type MoveTaskOutput struct {
	TaskID    int  `json:"task_id"`
	DisplayID int  `json:"display_id"`
	Moved     bool `json:"moved"`
}

// DisplayStateOutput is the output for the get_display_state tool.
type DisplayStateOutput struct {
	DisplayID int                   `json:"display_id"`
	State     display.State         `json:"state"`
	Rotation  string                `json:"rotation"`
	Info      *platform.DisplayInfo `json:"info,omitempty"`
}

// InspectTaskOutput is the output for the inspect_task tool.
type InspectTaskOutput struct {
	TaskID     int                 `json:"task_id"`
	Type       string              `json:"type"`
	Attributes []ipc.AttributeData `json:"attributes"`
}
