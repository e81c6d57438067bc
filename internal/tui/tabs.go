package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/taskmirror/internal/ipc"
)

// Tab identifies a TUI tab.
type Tab int

const (
	TabTasks Tab = iota
	TabDisplay
	tabCount // sentinel for iteration
)

func (t Tab) String() string {
	switch t {
	case TabTasks:
		return "Tasks"
	case TabDisplay:
		return "Display"
	default:
		return "?"
	}
}

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			MarginBottom(1)

	tabGap = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		SetString(" ")

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Width(18)
)

func renderTabBar(active Tab, width int) string {
	var tabs []string
	for i := Tab(0); i < tabCount; i++ {
		label := fmt.Sprintf("%d:%s", int(i)+1, i.String())
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, intersperse(tabs, tabGap.Render())...)
	return tabBarStyle.Width(width).Render(row)
}

// intersperse inserts sep between each element of items.
func intersperse(items []string, sep string) []string {
	if len(items) <= 1 {
		return items
	}
	result := make([]string, 0, len(items)*2-1)
	for i, item := range items {
		if i > 0 {
			result = append(result, sep)
		}
		result = append(result, item)
	}
	return result
}

// renderStatusBar shows the daemon connection, host and tracked display.
func renderStatusBar(status *ipc.StatusData, width int) string {
	var line string
	if status != nil {
		dot := okStyle.Render("●")
		parts := []string{
			dot + " " + status.Host + " " + status.Version,
			fmt.Sprintf("display %d", status.DisplayID),
		}
		if status.Display.SizeKnown {
			parts = append(parts, status.Display.Size.String())
		} else {
			parts = append(parts, "size unknown")
		}
		parts = append(parts, "rot "+status.Display.Rotation.String())
		parts = append(parts, fmt.Sprintf("gen %d", status.Generation))
		line = strings.Join(parts, "  ")
	} else {
		line = dimStyle.Render("●") + " daemon not running"
	}

	style := lipgloss.NewStyle().
		Width(width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1)
	return style.Render(line)
}

func renderHelpBar(active Tab, message string, width int) string {
	help := "tab: switch  r: refresh  q/ctrl-c: quit"
	if active == TabTasks {
		help = "f: focus  x: remove  m: move  i: inspect  a: all displays  " + help
	}
	if message != "" {
		help = message + "  |  " + help
	}
	style := lipgloss.NewStyle().
		Width(width).
		Foreground(lipgloss.Color("241")).
		Padding(0, 1)
	return style.Render(help)
}
