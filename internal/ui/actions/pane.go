// Package actions implements the numbered action bar of the order screen.
// Actions can be run by number key or by moving the focus and pressing
// enter; unavailable actions stay listed but dimmed.
package actions

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Kind selects the styling of an action
type Kind string

const (
	KindPrimary      Kind = "primary"
	KindConfirmation Kind = "confirmation"
	KindCancel       Kind = "cancel"
	KindInfo         Kind = "info"
	KindAlternative  Kind = "alternative"
)

// Action is one entry of the pane
type Action struct {
	ID       string
	Name     string
	Kind     Kind
	Icon     string
	Disabled bool
}

// Styling definitions for the action bar
var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#FAB387")).
			Padding(0, 1)

	paneTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAB387"))

	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A")).Padding(0, 1)

	// Action item styles for each kind and focus state
	actionStyles = map[string]lipgloss.Style{
		"primary":        lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")).Padding(0, 1),
		"primary_f":      lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#89B4FA")).Padding(0, 1),
		"confirmation":   lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")).Padding(0, 1),
		"confirmation_f": lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#A6E3A1")).Padding(0, 1),
		"cancel":         lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Padding(0, 1),
		"cancel_f":       lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#F38BA8")).Padding(0, 1),
		"info":           lipgloss.NewStyle().Foreground(lipgloss.Color("#94E2D5")).Padding(0, 1),
		"info_f":         lipgloss.NewStyle().Foreground(lipgloss.Color("#181825")).Background(lipgloss.Color("#94E2D5")).Padding(0, 1),
		"alternative":    lipgloss.NewStyle().Foreground(lipgloss.Color("#CBA6F7")).Padding(0, 1),
		"alternative_f":  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#CBA6F7")).Padding(0, 1),
	}
)

// Pane holds the actions and the focused entry
type Pane struct {
	actions       []Action
	selectedIndex int
	width         int
}

// NewPane creates an empty pane
func NewPane() *Pane {
	return &Pane{selectedIndex: -1}
}

// SetActions replaces the actions. The focus stays on the same action id
// when it is still present and enabled, otherwise it moves to the first
// enabled action.
func (p *Pane) SetActions(actions []Action) {
	focused := ""
	if a, ok := p.at(p.selectedIndex); ok {
		focused = a.ID
	}

	p.actions = append([]Action(nil), actions...)
	p.selectedIndex = -1
	for i, a := range p.actions {
		if a.ID == focused && !a.Disabled {
			p.selectedIndex = i
			return
		}
	}
	p.selectedIndex = p.step(-1, 1)
}

// Actions returns a copy of the current actions
func (p *Pane) Actions() []Action {
	return append([]Action(nil), p.actions...)
}

func (p *Pane) at(i int) (Action, bool) {
	if i < 0 || i >= len(p.actions) {
		return Action{}, false
	}
	return p.actions[i], true
}

// step walks from index in direction dir to the next enabled action,
// wrapping around. It returns -1 when every action is disabled.
func (p *Pane) step(index, dir int) int {
	n := len(p.actions)
	for i := 1; i <= n; i++ {
		next := ((index+dir*i)%n + n) % n
		if !p.actions[next].Disabled {
			return next
		}
	}
	return -1
}

// Next moves the focus to the next enabled action
func (p *Pane) Next() {
	if len(p.actions) == 0 {
		return
	}
	p.selectedIndex = p.step(p.selectedIndex, 1)
}

// Previous moves the focus to the previous enabled action
func (p *Pane) Previous() {
	if len(p.actions) == 0 {
		return
	}
	start := p.selectedIndex
	if start < 0 {
		start = 0
	}
	p.selectedIndex = p.step(start, -1)
}

// Selected returns the focused action
func (p *Pane) Selected() (Action, error) {
	a, ok := p.at(p.selectedIndex)
	if !ok {
		return Action{}, fmt.Errorf("no action selected")
	}
	return a, nil
}

// ByNumber returns the enabled action shown as [n]
func (p *Pane) ByNumber(n int) (Action, bool) {
	a, ok := p.at(n - 1)
	if !ok || a.Disabled {
		return Action{}, false
	}
	return a, true
}

// SetWidth sets the rendering width of the pane.
func (p *Pane) SetWidth(width int) {
	p.width = width
}

// View renders the pane as a single bordered row
func (p *Pane) View() string {
	if len(p.actions) == 0 {
		return ""
	}

	items := make([]string, 0, len(p.actions))
	for i, action := range p.actions {
		items = append(items, p.renderActionItem(i, action, i == p.selectedIndex))
	}

	titled := lipgloss.JoinVertical(lipgloss.Left,
		paneTitleStyle.Render(p.title()),
		strings.Join(items, " "),
	)

	style := paneStyle
	if p.width > 2 {
		style = style.Width(p.width - 2)
	}
	return style.Render(titled)
}

// title reflects whether the pane is asking for a confirmation: a
// confirmation action without any primary one
func (p *Pane) title() string {
	hasConfirmation, hasPrimary := false, false
	for _, action := range p.actions {
		switch action.Kind {
		case KindConfirmation:
			hasConfirmation = true
		case KindPrimary, "":
			hasPrimary = true
		}
	}
	if hasConfirmation && !hasPrimary {
		return "Confirmation Required"
	}
	return "Actions"
}

// renderActionItem creates a single numbered action with appropriate styling.
func (p *Pane) renderActionItem(index int, action Action, isFocused bool) string {
	text := fmt.Sprintf("[%d] %s %s", index+1, actionIcon(action), action.Name)
	if action.Disabled {
		return disabledStyle.Render(text)
	}

	styleKey := string(action.Kind)
	if styleKey == "" {
		styleKey = string(KindPrimary)
	}
	if isFocused {
		styleKey += "_f"
	}

	style, exists := actionStyles[styleKey]
	if !exists {
		style = actionStyles["primary"]
		if isFocused {
			style = actionStyles["primary_f"]
		}
	}
	return style.Render(text)
}

func actionIcon(action Action) string {
	if action.Icon != "" {
		return action.Icon
	}
	switch action.Kind {
	case KindConfirmation:
		return "✅"
	case KindCancel:
		return "❌"
	case KindInfo:
		return "📋"
	case KindAlternative:
		return "🔄"
	default:
		return "▶"
	}
}
