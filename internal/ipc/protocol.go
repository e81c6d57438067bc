package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/task"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload          CommandType = "RELOAD"
	CommandGetStatus       CommandType = "GET_STATUS"
	CommandFocusedTask     CommandType = "FOCUSED_TASK"
	CommandListTasks       CommandType = "LIST_TASKS"
	CommandRemoveTask      CommandType = "REMOVE_TASK"
	CommandFocusTask       CommandType = "FOCUS_TASK"
	CommandMoveTask        CommandType = "MOVE_TASK"
	CommandGetDisplayState CommandType = "GET_DISPLAY_STATE"
	CommandInspectTask     CommandType = "INSPECT_TASK"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// CapabilityData reports how one task operation resolved.
type CapabilityData struct {
	Operation string `json:"operation"`
	Method    string `json:"method,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	SessionID     string           `json:"session_id"`
	Host          string           `json:"host"`
	Version       string           `json:"version"`
	DisplayID     int              `json:"display_id"`
	Display       display.State    `json:"display"`
	Generation    uint64           `json:"generation"`
	Capabilities  []CapabilityData `json:"capabilities,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	DaemonRunning bool             `json:"daemon_running"`
}

type FocusedTaskData struct {
	Task *task.Summary `json:"task,omitempty"`
}

// ListTasksPayload filters LIST_TASKS to one display when DisplayID is set.
type ListTasksPayload struct {
	DisplayID *int `json:"display_id,omitempty"`
}

type TasksData struct {
	Tasks []task.Summary `json:"tasks"`
}

type TaskPayload struct {
	TaskID int `json:"task_id"`
}

type RemoveTaskData struct {
	Removed bool `json:"removed"`
}

type MoveTaskPayload struct {
	TaskID    int `json:"task_id"`
	DisplayID int `json:"display_id"`
}

// DisplayStateData is the tracked state plus the host's current descriptor.
type DisplayStateData struct {
	DisplayID int                   `json:"display_id"`
	State     display.State         `json:"state"`
	Info      *platform.DisplayInfo `json:"info,omitempty"`
}

// AttributeData is one attribute of an inspected task record, rendered as
// text.
type AttributeData struct {
	Layer    string `json:"layer"`
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	Error    string `json:"error,omitempty"`
	Shadowed bool   `json:"shadowed,omitempty"`
}

type InspectData struct {
	TaskID     int             `json:"task_id"`
	Type       string          `json:"type"`
	Attributes []AttributeData `json:"attributes"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
