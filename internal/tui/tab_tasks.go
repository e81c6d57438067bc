package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/taskmirror/internal/ipc"
	"github.com/1broseidon/taskmirror/internal/task"
)

// taskItem is a list item representing one running task.
type taskItem struct {
	summary task.Summary
	focused bool
}

func (i taskItem) Title() string {
	name := i.summary.TopApplication
	if name == "" {
		name = i.summary.BaseApplication
	}
	if name == "" {
		name = "(unknown application)"
	}
	marker := dimStyle.Render("○")
	if i.focused {
		marker = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render("★")
	} else if i.summary.Visible {
		marker = okStyle.Render("●")
	}
	return fmt.Sprintf("%s #%d %s", marker, i.summary.TaskID, name)
}

func (i taskItem) Description() string {
	parts := []string{
		fmt.Sprintf("display %d", i.summary.DisplayID),
		i.summary.ActivityType,
	}
	if i.summary.Visible {
		parts = append(parts, "visible")
	}
	if i.summary.LastActiveTime > 0 {
		parts = append(parts, "active "+i.summary.ActiveClock())
	}
	return strings.Join(parts, " | ")
}

func (i taskItem) FilterValue() string {
	return i.summary.BaseApplication + " " + i.summary.TopApplication
}

type (
	tasksMsg struct {
		tasks   []task.Summary
		focused *task.Summary
		err     error
	}
	inspectMsg struct {
		data *ipc.InspectData
		err  error
	}
	// actionMsg reports the outcome of a mutation; the task list is
	// refreshed after every action.
	actionMsg struct {
		text string
		err  error
	}
)

// TasksTab is the sub-model for the task browser.
type TasksTab struct {
	backend Backend
	list    list.Model
	width   int
	height  int

	displayID   int
	allDisplays bool
	inspect     *ipc.InspectData

	// Move mode
	moving    bool
	moveInput textinput.Model
}

// NewTasksTab creates a task browser scoped to displayID.
func NewTasksTab(backend Backend, displayID int) TasksTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	ti := textinput.New()
	ti.Placeholder = "target display id"
	ti.CharLimit = 6

	t := TasksTab{
		backend:   backend,
		list:      l,
		displayID: displayID,
		moveInput: ti,
	}
	t.updateTitle()
	return t
}

func (t *TasksTab) updateTitle() {
	if t.allDisplays {
		t.list.Title = "Tasks on all displays"
	} else {
		t.list.Title = fmt.Sprintf("Tasks on display %d", t.displayID)
	}
}

// Refresh reloads the task list from the daemon.
func (t TasksTab) Refresh() tea.Cmd {
	backend := t.backend
	displayID := t.displayID
	if t.allDisplays {
		displayID = -1
	}
	return func() tea.Msg {
		tasks, err := backend.ListTasks(displayID)
		if err != nil {
			return tasksMsg{err: err}
		}
		// Focus is optional; hosts without it still list tasks.
		focused, _ := backend.FocusedTask()
		return tasksMsg{tasks: tasks, focused: focused}
	}
}

// Selected returns the highlighted task.
func (t TasksTab) Selected() (task.Summary, bool) {
	item, ok := t.list.SelectedItem().(taskItem)
	if !ok {
		return task.Summary{}, false
	}
	return item.summary, true
}

// Capturing reports whether the tab consumes all key input.
func (t TasksTab) Capturing() bool {
	return t.moving
}

// Update handles messages for the tasks tab.
func (t TasksTab) Update(msg tea.Msg) (TasksTab, tea.Cmd) {
	if t.moving {
		return t.updateMoving(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
		t.list.SetSize(t.listWidth(), t.height)
		return t, nil

	case tasksMsg:
		if msg.err != nil {
			return t, nil
		}
		items := make([]list.Item, 0, len(msg.tasks))
		for _, s := range msg.tasks {
			focused := msg.focused != nil && msg.focused.TaskID == s.TaskID
			items = append(items, taskItem{summary: s, focused: focused})
		}
		cmd := t.list.SetItems(items)
		if t.inspect != nil {
			if sel, ok := t.Selected(); !ok || sel.TaskID != t.inspect.TaskID {
				t.inspect = nil
			}
		}
		return t, cmd

	case inspectMsg:
		if msg.err == nil {
			t.inspect = msg.data
		}
		return t, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "f", "enter":
			if sel, ok := t.Selected(); ok {
				return t, t.focus(sel.TaskID)
			}
			return t, nil
		case "m":
			if _, ok := t.Selected(); ok {
				t.moving = true
				t.moveInput.Reset()
				t.moveInput.Focus()
				return t, textinput.Blink
			}
			return t, nil
		case "i":
			if sel, ok := t.Selected(); ok {
				return t, t.inspectTask(sel.TaskID)
			}
			return t, nil
		case "a":
			t.allDisplays = !t.allDisplays
			t.updateTitle()
			return t, t.Refresh()
		}
	}

	prev, _ := t.Selected()
	var cmd tea.Cmd
	t.list, cmd = t.list.Update(msg)
	if sel, ok := t.Selected(); ok && sel.TaskID != prev.TaskID {
		t.inspect = nil
	}
	return t, cmd
}

func (t TasksTab) updateMoving(msg tea.Msg) (TasksTab, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "esc":
			t.moving = false
			t.moveInput.Blur()
			return t, nil
		case "enter":
			t.moving = false
			t.moveInput.Blur()
			value := strings.TrimSpace(t.moveInput.Value())
			target, err := strconv.Atoi(value)
			if err != nil || target < 0 {
				return t, func() tea.Msg {
					return actionMsg{err: fmt.Errorf("invalid display id %q", value)}
				}
			}
			if sel, ok := t.Selected(); ok {
				return t, t.move(sel.TaskID, target)
			}
			return t, nil
		}
	}
	var cmd tea.Cmd
	t.moveInput, cmd = t.moveInput.Update(msg)
	return t, cmd
}

func (t TasksTab) focus(taskID int) tea.Cmd {
	backend := t.backend
	return func() tea.Msg {
		if err := backend.FocusTask(taskID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("focused task %d", taskID)}
	}
}

func (t TasksTab) move(taskID, displayID int) tea.Cmd {
	backend := t.backend
	return func() tea.Msg {
		if err := backend.MoveTask(taskID, displayID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("moved task %d to display %d", taskID, displayID)}
	}
}

func (t TasksTab) inspectTask(taskID int) tea.Cmd {
	backend := t.backend
	return func() tea.Msg {
		data, err := backend.InspectTask(taskID)
		return inspectMsg{data: data, err: err}
	}
}

func removeTask(backend Backend, taskID int) tea.Cmd {
	return func() tea.Msg {
		removed, err := backend.RemoveTask(taskID)
		if err != nil {
			return actionMsg{err: err}
		}
		if !removed {
			return actionMsg{text: fmt.Sprintf("task %d was already gone", taskID)}
		}
		return actionMsg{text: fmt.Sprintf("removed task %d", taskID)}
	}
}

func (t TasksTab) listWidth() int {
	w := t.width / 2
	if w < 30 {
		w = t.width
	}
	return w
}

// View renders the task list beside the inspected attributes.
func (t TasksTab) View() string {
	left := t.list.View()
	if t.moving {
		left = lipgloss.JoinVertical(lipgloss.Left, left, "Move to display: "+t.moveInput.View())
	}

	rightWidth := t.width - t.listWidth() - 2
	if rightWidth < 20 {
		return left
	}
	right := t.renderInspect(rightWidth)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

func (t TasksTab) renderInspect(width int) string {
	style := lipgloss.NewStyle().Width(width).Height(t.height)
	if t.inspect == nil {
		return style.Render(dimStyle.Render("press i to inspect the selected task"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s task %d\n\n", t.inspect.Type, t.inspect.TaskID)
	for _, a := range t.inspect.Attributes {
		name := a.Layer + "." + a.Name
		value := a.Value
		switch {
		case a.Error != "":
			value = errStyle.Render("error: " + a.Error)
		case a.Shadowed:
			value = dimStyle.Render(value + " (shadowed)")
		}
		b.WriteString(labelStyle.Render(name) + " " + value + "\n")
	}
	return style.Render(b.String())
}
