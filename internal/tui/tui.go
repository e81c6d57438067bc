package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/task"
)

// Backend is the daemon surface the browser drives. *ipc.Client satisfies
// it.
type Backend interface {
	GetStatus() (*ipc.StatusData, error)
	FocusedTask() (*task.Summary, error)
	ListTasks(displayID int) ([]task.Summary, error)
	RemoveTask(taskID int) (bool, error)
	FocusTask(taskID int) error
	MoveTask(taskID, displayID int) error
	GetDisplayState() (*ipc.DisplayStateData, error)
	InspectTask(taskID int) (*ipc.InspectData, error)
}

var _ Backend = (*ipc.Client)(nil)

// Run starts the task browser. displayID scopes the initial list; the
// browser can switch to all displays.
func Run(backend Backend, displayID int) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}

	p := tea.NewProgram(newModel(backend, displayID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
