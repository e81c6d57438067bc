package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/1broseidon/taskmirror/internal/attr"
	"github.com/1broseidon/taskmirror/internal/capability"
	"github.com/1broseidon/taskmirror/internal/display"
	"github.com/1broseidon/taskmirror/internal/platform"
	"github.com/1broseidon/taskmirror/internal/runtimepath"
	"github.com/1broseidon/taskmirror/internal/task"
)

// Deps are the daemon components the server answers from.
type Deps struct {
	Tasks    *task.Controller
	Tracker  *display.Tracker
	Displays platform.DisplayService
	Status   func() StatusData
	Reload   func() error
	Logger   *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	deps         Deps
	logger       *slog.Logger
	shuttingDown bool
	shutdownMu   sync.Mutex
}

// NewServer creates a new IPC server
func NewServer(deps Deps) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		deps:       deps,
		logger:     logger,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection serves one newline-terminated JSON request.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command)

	switch req.Command {
	case CommandReload:
		return s.handleReload()
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandFocusedTask:
		return s.handleFocusedTask()
	case CommandListTasks:
		return s.handleListTasks(req.Payload)
	case CommandRemoveTask:
		return s.handleRemoveTask(req.Payload)
	case CommandFocusTask:
		return s.handleFocusTask(req.Payload)
	case CommandMoveTask:
		return s.handleMoveTask(req.Payload)
	case CommandGetDisplayState:
		return s.handleGetDisplayState()
	case CommandInspectTask:
		return s.handleInspectTask(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleReload() *Response {
	if s.deps.Reload == nil {
		return NewErrorResponse("reload is not available")
	}
	if err := s.deps.Reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload config: %v", err))
	}
	return ok(nil)
}

func (s *Server) handleGetStatus() *Response {
	var status StatusData
	if s.deps.Status != nil {
		status = s.deps.Status()
	}
	status.DaemonRunning = true
	return ok(status)
}

func (s *Server) handleFocusedTask() *Response {
	var data FocusedTaskData
	if info := s.deps.Tasks.FocusedTask(); info != nil {
		summary := info.Summary()
		data.Task = &summary
	}
	return ok(data)
}

func (s *Server) handleListTasks(payload json.RawMessage) *Response {
	var req ListTasksPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid list payload: %v", err))
		}
	}

	var (
		infos []*task.Info
		okay  bool
	)
	if req.DisplayID != nil {
		infos, okay = s.deps.Tasks.TasksOnDisplay(*req.DisplayID)
	} else {
		infos, okay = s.deps.Tasks.AllTasks()
	}
	if !okay {
		return NewErrorResponse("Failed to list tasks (see daemon log)")
	}
	return ok(TasksData{Tasks: task.Summaries(infos)})
}

func (s *Server) handleRemoveTask(payload json.RawMessage) *Response {
	var req TaskPayload
	if resp := decodeTaskPayload(payload, &req); resp != nil {
		return resp
	}
	if resp := s.requireSupported(capability.RemoveTask); resp != nil {
		return resp
	}
	removed, okay := s.deps.Tasks.RemoveTask(req.TaskID)
	if !okay {
		return NewErrorResponse(fmt.Sprintf("Failed to remove task %d (see daemon log)", req.TaskID))
	}
	return ok(RemoveTaskData{Removed: removed})
}

func (s *Server) handleFocusTask(payload json.RawMessage) *Response {
	var req TaskPayload
	if resp := decodeTaskPayload(payload, &req); resp != nil {
		return resp
	}
	if resp := s.requireSupported(capability.FocusTask); resp != nil {
		return resp
	}
	s.deps.Tasks.SetFocusedTask(req.TaskID)
	return ok(nil)
}

func (s *Server) handleMoveTask(payload json.RawMessage) *Response {
	var req MoveTaskPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid move payload: %v", err))
	}
	if req.TaskID < 0 || req.DisplayID < 0 {
		return NewErrorResponse("task_id and display_id must be >= 0")
	}
	if resp := s.requireSupported(capability.MoveTaskToDisplay); resp != nil {
		return resp
	}
	s.deps.Tasks.MoveTaskToDisplay(req.TaskID, req.DisplayID)
	return ok(nil)
}

func (s *Server) handleGetDisplayState() *Response {
	id := s.deps.Tracker.DisplayID()
	data := DisplayStateData{
		DisplayID: id,
		State:     s.deps.Tracker.State(),
	}
	if s.deps.Displays != nil {
		if info, found := s.deps.Displays.DisplayInfo(id); found {
			data.Info = &info
		}
	}
	return ok(data)
}

func (s *Server) handleInspectTask(payload json.RawMessage) *Response {
	var req TaskPayload
	if resp := decodeTaskPayload(payload, &req); resp != nil {
		return resp
	}
	infos, okay := s.deps.Tasks.AllTasks()
	if !okay {
		return NewErrorResponse("Failed to list tasks (see daemon log)")
	}
	for _, info := range infos {
		if info.TaskID() != req.TaskID {
			continue
		}
		return ok(Inspect(info))
	}
	return NewErrorResponse(fmt.Sprintf("Task %d not found", req.TaskID))
}

// Inspect lists every attribute of a task record.
func Inspect(info *task.Info) InspectData {
	rec := info.Record()
	data := InspectData{TaskID: info.TaskID()}
	if typed, isTyped := rec.(interface{ TypeName() string }); isTyped {
		data.Type = typed.TypeName()
	}
	for _, f := range attr.List(rec) {
		a := AttributeData{Layer: f.Layer, Name: f.Name, Error: f.Err, Shadowed: f.Shadowed}
		if f.Value != nil {
			a.Value = fmt.Sprint(f.Value)
		}
		data.Attributes = append(data.Attributes, a)
	}
	return data
}

// requireSupported turns an unsupported operation into an error response
// before the controller is asked to run it.
func (s *Server) requireSupported(op capability.Operation) *Response {
	if _, err := s.deps.Tasks.Resolver().Resolve(op); errors.Is(err, capability.ErrUnsupported) {
		return NewErrorResponse(fmt.Sprintf("%s is not supported by this host", op))
	}
	return nil
}

func decodeTaskPayload(payload json.RawMessage, req *TaskPayload) *Response {
	if err := json.Unmarshal(payload, req); err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid task payload: %v", err))
	}
	if req.TaskID < 0 {
		return NewErrorResponse("task_id must be >= 0")
	}
	return nil
}

func ok(data any) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
