package login

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/ui/components"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#CBA6F7")).
			Padding(1, 2)

	labelStyle        = lipgloss.NewStyle().Width(10)
	focusedLabelStyle = lipgloss.NewStyle().Width(10).Bold(true).Foreground(lipgloss.Color("#89B4FA"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Padding(1, 0)

	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true)
)

// View renders the sign-in screen.
func (m *Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Width(m.width).Render("DeliHood"))
	s.WriteString("\n\n")

	if m.submitting {
		s.WriteString(boxStyle.Render(m.spinner.View() + " Signing in..."))
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Bold(true).Render("Sign in"),
		"",
		m.field("Email", m.emailInput.View(), m.focusState == FocusEmail),
		m.field("Password", m.passwordInput.View(), m.focusState == FocusPassword),
	)))

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("[Enter] Sign in | [Tab] Next field | [Esc] Quit"))

	if m.err != nil {
		s.WriteString("\n")
		if apperrors.KindOf(m.err) == "" {
			s.WriteString(hintStyle.Render(m.err.Error()))
		} else {
			s.WriteString(components.RenderAlertPane(m.err, m.width, m.showDetails))
		}
	}

	return s.String()
}

func (m *Model) field(label, input string, focused bool) string {
	style := labelStyle
	if focused {
		style = focusedLabelStyle
	}
	return style.Render(label) + input
}
