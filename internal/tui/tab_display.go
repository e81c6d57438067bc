package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/taskmirror/internal/ipc"
)

type displayMsg struct {
	data *ipc.DisplayStateData
	err  error
}

// DisplayTab shows the tracked display and the resolved host capabilities.
type DisplayTab struct {
	backend Backend
	state   *ipc.DisplayStateData
	width   int
	height  int
}

func NewDisplayTab(backend Backend) DisplayTab {
	return DisplayTab{backend: backend}
}

// Refresh reloads the display descriptor.
func (d DisplayTab) Refresh() tea.Cmd {
	backend := d.backend
	return func() tea.Msg {
		data, err := backend.GetDisplayState()
		return displayMsg{data: data, err: err}
	}
}

func (d DisplayTab) Update(msg tea.Msg) (DisplayTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
	case displayMsg:
		if msg.err == nil {
			d.state = msg.data
		}
	}
	return d, nil
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value + "\n"
}

// View renders the display and session details. status may be nil when the
// daemon is unreachable.
func (d DisplayTab) View(status *ipc.StatusData) string {
	style := lipgloss.NewStyle().Width(d.width).Height(d.height).Padding(0, 1)
	if status == nil {
		return style.Render(dimStyle.Render("daemon not running"))
	}

	var b strings.Builder
	b.WriteString(row("Session", status.SessionID))
	b.WriteString(row("Host", status.Host+" "+status.Version))
	b.WriteString(row("Uptime", (time.Duration(status.UptimeSeconds) * time.Second).String()))
	b.WriteString(row("Generation", fmt.Sprintf("%d", status.Generation)))
	b.WriteString("\n")

	b.WriteString(row("Display", fmt.Sprintf("%d", status.DisplayID)))
	if status.Display.SizeKnown {
		b.WriteString(row("Tracked size", status.Display.Size.String()))
	} else {
		b.WriteString(row("Tracked size", dimStyle.Render("unknown")))
	}
	b.WriteString(row("Tracked rotation", status.Display.Rotation.String()))
	if d.state != nil && d.state.Info != nil {
		info := d.state.Info
		if info.Name != "" {
			b.WriteString(row("Name", info.Name))
		}
		b.WriteString(row("Host size", info.Size.String()))
		if info.Density > 0 {
			b.WriteString(row("Density", fmt.Sprintf("%d dpi", info.Density)))
		}
	} else if d.state != nil {
		b.WriteString(row("Host", errStyle.Render("display not present")))
	}
	b.WriteString("\n")

	b.WriteString("Capabilities\n")
	if len(status.Capabilities) == 0 {
		b.WriteString(dimStyle.Render("  none resolved yet") + "\n")
	}
	for _, c := range status.Capabilities {
		switch {
		case c.Error != "":
			b.WriteString("  " + labelStyle.Render(c.Operation) + " " + errStyle.Render(c.Error) + "\n")
		case c.Method == "":
			b.WriteString("  " + labelStyle.Render(c.Operation) + " " + dimStyle.Render("unsupported") + "\n")
		default:
			b.WriteString("  " + labelStyle.Render(c.Operation) + " " + okStyle.Render(c.Method) + "\n")
		}
	}
	return style.Render(b.String())
}
