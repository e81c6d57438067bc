package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmOverlay asks before a destructive action runs.
type ConfirmOverlay struct {
	prompt string
	action tea.Cmd
}

// Active reports whether the overlay is visible.
func (c ConfirmOverlay) Active() bool {
	return c.action != nil
}

// Show opens the overlay; action runs when the user confirms.
func (c *ConfirmOverlay) Show(prompt string, action tea.Cmd) {
	c.prompt = prompt
	c.action = action
}

// Update returns the confirmed action, or nil when the overlay was dismissed
// or is still waiting.
func (c ConfirmOverlay) Update(msg tea.Msg) (ConfirmOverlay, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil
	}
	switch km.String() {
	case "y", "enter":
		action := c.action
		c.action = nil
		return c, action
	case "n", "esc":
		c.action = nil
	}
	return c, nil
}

func (c ConfirmOverlay) View(width, height int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("196")).
		Padding(1, 2).
		Render(c.prompt + "\n\n" + dimStyle.Render("y/enter: confirm  n/esc: cancel"))
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
