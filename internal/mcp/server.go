package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/task"
)

const (
	ServerName    = "taskmirror"
	ServerVersion = "0.1.0"
)

// Backend is the daemon surface the tools call into. *ipc.Client satisfies
// it.
type Backend interface {
	FocusedTask() (*task.Summary, error)
	ListTasks(displayID int) ([]task.Summary, error)
	RemoveTask(taskID int) (bool, error)
	FocusTask(taskID int) error
	MoveTask(taskID, displayID int) error
	GetDisplayState() (*ipc.DisplayStateData, error)
	InspectTask(taskID int) (*ipc.InspectData, error)
}

var _ Backend = (*ipc.Client)(nil)

// Server exposes the running daemon's task and display operations as MCP
// tools.
type Server struct {
	mcpServer *mcpsdk.Server
	backend   Backend
	logger    *slog.Logger
}

// NewServer creates an MCP server backed by backend. A nil logger discards
// tool logs.
func NewServer(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		mcpServer: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		}, nil),
		backend: backend,
		logger:  logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_focused_task",
		Description: "Return the task that currently has input focus on the device, if any.",
	}, s.handleFocusedTask)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_tasks",
		Description: "List running tasks with their display, base and top application, visibility and activity type. Pass display_id to restrict the list to one display.",
	}, s.handleListTasks)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "remove_task",
		Description: "Remove a task from the device. Returns removed=false when the host had no such task.",
	}, s.handleRemoveTask)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "focus_task",
		Description: "Bring a task to the front and give it input focus.",
	}, s.handleFocusTask)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "move_task_to_display",
		Description: "Move a task to another display. Fails on hosts that cannot move tasks between displays.",
	}, s.handleMoveTask)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_display_state",
		Description: "Return the mirrored display's tracked size and rotation along with the host's current descriptor for it.",
	}, s.handleDisplayState)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "inspect_task",
		Description: "List every attribute the host exposes for one task record, including attributes the host failed to read.",
	}, s.handleInspectTask)
}
