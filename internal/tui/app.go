package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/taskmirror/internal/ipc"
)

const refreshInterval = 2 * time.Second

type (
	statusMsg struct {
		status *ipc.StatusData
		err    error
	}
	tickMsg time.Time
)

// model is the root bubbletea model for the TUI.
type model struct {
	backend Backend

	activeTab  Tab
	tasksTab   TasksTab
	displayTab DisplayTab
	confirm    ConfirmOverlay

	// nil while the daemon is unreachable
	status  *ipc.StatusData
	message string

	width  int
	height int
}

func newModel(backend Backend, displayID int) model {
	return model{
		backend:    backend,
		activeTab:  TabTasks,
		tasksTab:   NewTasksTab(backend, displayID),
		displayTab: NewDisplayTab(backend),
	}
}

func (m model) refreshStatus() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		status, err := backend.GetStatus()
		return statusMsg{status: status, err: err}
	}
}

func (m model) refreshAll() tea.Cmd {
	return tea.Batch(m.refreshStatus(), m.tasksTab.Refresh(), m.displayTab.Refresh())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(m.refreshAll(), tick())
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		subMsg := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
		m.tasksTab, _ = m.tasksTab.Update(subMsg)
		m.displayTab, _ = m.displayTab.Update(subMsg)
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refreshAll(), tick())

	case statusMsg:
		if msg.err != nil {
			m.status = nil
		} else {
			m.status = msg.status
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.message = errStyle.Render(msg.err.Error())
		} else {
			m.message = okStyle.Render(msg.text)
		}
		return m, m.refreshAll()

	case tasksMsg:
		if msg.err != nil {
			m.message = errStyle.Render(msg.err.Error())
		}
		var cmd tea.Cmd
		m.tasksTab, cmd = m.tasksTab.Update(msg)
		return m, cmd

	case inspectMsg:
		if msg.err != nil {
			m.message = errStyle.Render(msg.err.Error())
		}
		var cmd tea.Cmd
		m.tasksTab, cmd = m.tasksTab.Update(msg)
		return m, cmd

	case displayMsg:
		var cmd tea.Cmd
		m.displayTab, cmd = m.displayTab.Update(msg)
		return m, cmd
	}

	km, isKey := msg.(tea.KeyMsg)
	if isKey && km.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// The confirmation overlay captures all input when active
	if m.confirm.Active() {
		var cmd tea.Cmd
		m.confirm, cmd = m.confirm.Update(msg)
		return m, cmd
	}

	if m.activeTab == TabTasks && m.tasksTab.Capturing() {
		var cmd tea.Cmd
		m.tasksTab, cmd = m.tasksTab.Update(msg)
		return m, cmd
	}

	if isKey {
		switch km.String() {
		case "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabTasks
			return m, nil
		case "2":
			m.activeTab = TabDisplay
			return m, nil
		case "r":
			m.message = ""
			return m, m.refreshAll()
		case "x", "delete":
			if m.activeTab != TabTasks {
				break
			}
			if sel, ok := m.tasksTab.Selected(); ok {
				m.confirm.Show(fmt.Sprintf("Remove task %d?", sel.TaskID), removeTask(m.backend, sel.TaskID))
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabTasks:
		m.tasksTab, cmd = m.tasksTab.Update(msg)
	case TabDisplay:
		m.displayTab, cmd = m.displayTab.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.activeTab, m.message, m.width)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := m.height - usedHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch {
	case m.confirm.Active():
		content = m.confirm.View(m.width, contentHeight)
	case m.activeTab == TabTasks:
		content = m.tasksTab.View()
	default:
		content = m.displayTab.View(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}
