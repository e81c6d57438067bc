package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/taskmirror/internal/runtimepath"
	"github.com/1broseidon/taskmirror/internal/task"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}

	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends command with an optional payload and decodes the response data
// into out when out is non-nil.
func (c *Client) call(command CommandType, payload any, out any) error {
	req := &Request{Command: command}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", command, err)
	}
	return nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// FocusedTask returns the focused task, nil when nothing is focused.
func (c *Client) FocusedTask() (*task.Summary, error) {
	var data FocusedTaskData
	if err := c.call(CommandFocusedTask, nil, &data); err != nil {
		return nil, err
	}
	return data.Task, nil
}

// ListTasks lists every task, or only those on displayID when it is
// non-negative.
func (c *Client) ListTasks(displayID int) ([]task.Summary, error) {
	var payload ListTasksPayload
	if displayID >= 0 {
		payload.DisplayID = &displayID
	}
	var data TasksData
	if err := c.call(CommandListTasks, payload, &data); err != nil {
		return nil, err
	}
	return data.Tasks, nil
}

// RemoveTask reports whether the host removed the task.
func (c *Client) RemoveTask(taskID int) (bool, error) {
	var data RemoveTaskData
	if err := c.call(CommandRemoveTask, TaskPayload{TaskID: taskID}, &data); err != nil {
		return false, err
	}
	return data.Removed, nil
}

func (c *Client) FocusTask(taskID int) error {
	return c.call(CommandFocusTask, TaskPayload{TaskID: taskID}, nil)
}

func (c *Client) MoveTask(taskID, displayID int) error {
	return c.call(CommandMoveTask, MoveTaskPayload{TaskID: taskID, DisplayID: displayID}, nil)
}

// GetDisplayState retrieves the tracked display state.
func (c *Client) GetDisplayState() (*DisplayStateData, error) {
	var data DisplayStateData
	if err := c.call(CommandGetDisplayState, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// InspectTask lists the attributes of one task record.
func (c *Client) InspectTask(taskID int) (*InspectData, error) {
	var data InspectData
	if err := c.call(CommandInspectTask, TaskPayload{TaskID: taskID}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
