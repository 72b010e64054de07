package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	apperrors "github.com/delihood/client/internal/errors"
)

// Styling for alert components.
var (
	alertPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder(), false, true, true, true).
			BorderForeground(lipgloss.Color("#F38BA8")).
			MarginTop(1).
			Padding(0, 1)

	alertHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#F38BA8"))

	alertKindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAB387")).
			Italic(true)

	alertDetailsStyle = lipgloss.NewStyle().
				MarginTop(1).
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(lipgloss.Color("#6C7086")).
				Foreground(lipgloss.Color("#CDD6F4"))

	noticePaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FAB387")).
			Padding(0, 1)
)

// RenderAlertPane renders the alert for err: the static title and message
// of its kind, the kind itself and, for application errors, the server's
// message. A nil err renders nothing.
func RenderAlertPane(err error, width int, showDetails bool) string {
	if err == nil {
		return ""
	}
	alert := apperrors.AlertFor(err)

	var builder strings.Builder
	builder.WriteString(alertHeaderStyle.Render("❌ " + alert.Title))
	builder.WriteRune('\n')
	builder.WriteString(alert.Message)

	if kind := apperrors.KindOf(err); kind != "" {
		builder.WriteRune('\n')
		builder.WriteString(alertKindStyle.Render(fmt.Sprintf("   Code: %s", kind)))
	}
	if msg := apperrors.MessageOf(err); msg != "" {
		builder.WriteRune('\n')
		builder.WriteString(alertDetailsStyle.Render(msg))
	} else if showDetails {
		builder.WriteRune('\n')
		builder.WriteString(alertDetailsStyle.Render(err.Error()))
	}

	if width > 4 {
		return alertPaneStyle.Width(width - 4).Render(builder.String())
	}
	return alertPaneStyle.Render(builder.String())
}

// RenderNotice renders an informative server event
func RenderNotice(event, message string, width int) string {
	if message == "" {
		message = "The server reported a problem with your order."
	}
	body := RenderStatus("warning", event) + "\n" + message
	if width > 4 {
		return noticePaneStyle.Width(width - 4).Render(body)
	}
	return noticePaneStyle.Render(body)
}
