package tracking

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/realtime"
	"github.com/delihood/client/internal/ui/components"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#6C7086")).
			Padding(1)

	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))

	itemStyle = lipgloss.NewStyle().MarginLeft(2)

	statusLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1")).
			Italic(true)

	confirmStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAB387"))
)

// View implements tea.Model
func (m *Model) View() string {
	var sections []string

	sections = append(sections, m.renderHeader())

	if m.inspecting {
		sections = append(sections, paneStyle.Render(m.inspection))
		sections = append(sections, mutedStyle.Render("[i/Esc] Close inspector"))
		return strings.Join(sections, "\n")
	}

	sections = append(sections, m.renderOrderPane())

	if notice := m.snapshot.Notice; notice != nil {
		sections = append(sections, components.RenderNotice(notice.Event, notice.Message, m.width))
	}
	if m.err != nil {
		sections = append(sections, components.RenderAlertPane(m.err, m.width, m.showDetails))
	}
	if len(m.activity) > 0 {
		sections = append(sections, m.renderActivity())
	}
	if line := m.renderStatusLine(); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, m.renderHelp())

	return strings.Join(sections, "\n")
}

func (m *Model) renderHeader() string {
	title := "DeliHood · Current order"
	if user := m.deps.User; user != nil && user.Username != "" {
		title += " · " + user.Username
	}
	header := headerStyle.Render(title)
	conn := components.RenderConnection(m.connState.String())
	return lipgloss.JoinHorizontal(lipgloss.Center, header, " ", conn)
}

func (m *Model) renderOrderPane() string {
	snap := m.snapshot
	text := components.OrderStatusText(snap.Status())

	var b strings.Builder
	b.WriteString(components.RenderOrderBadge(snap.Status()))
	b.WriteString("\n")
	b.WriteString(detailStyle.Render(text.Detail))

	if !snap.HasOrder() {
		return paneStyle.Render(b.String())
	}

	b.WriteString("\n\n")
	barWidth := 30
	if m.width > 0 && m.width < 60 {
		barWidth = m.width / 2
	}
	b.WriteString(components.RenderLifecycle(snap.Status(), barWidth))

	order := snap.Order
	b.WriteString("\n\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Order #%d", order.ServerID)))
	for _, item := range order.Items {
		b.WriteString("\n")
		b.WriteString(itemStyle.Render(fmt.Sprintf("%d× %s  %s", item.Quantity, item.Name, item.Subtotal().StringFixed(2))))
	}
	if len(order.Items) > 0 {
		b.WriteString("\n")
		b.WriteString(itemStyle.Render("Total " + order.Total().StringFixed(2)))
	}

	if driver := snap.Driver; driver != nil && showsDriver(snap.Status()) {
		b.WriteString("\n\n")
		b.WriteString(components.RenderStatus("running",
			fmt.Sprintf("Driver at %.5f, %.5f (%s)", driver.Lat, driver.Lng, driver.ReceivedAt.Format("15:04:05"))))
	}

	if !snap.AppliedAt.IsZero() {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Updated %s via %s", snap.AppliedAt.Format("15:04:05"), snap.Source)))
	}

	return paneStyle.Render(b.String())
}

func showsDriver(status models.OrderStatus) bool {
	return status == models.StatusDelivering || status == models.StatusDropoffReady
}

func (m *Model) renderActivity() string {
	lines := []string{mutedStyle.Render("Activity")}
	for _, entry := range m.activity {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("  %s  #%d → %s", entry.At.Format("15:04:05"), entry.OrderID, entry.Status)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatusLine() string {
	switch {
	case m.confirmCancel:
		return confirmStyle.Render("Cancel this order? [y] Yes  [n] No")
	case m.busy != "":
		return m.spinner.View() + " " + m.busy + "..."
	case m.status != "":
		return statusLineStyle.Render(m.status)
	case m.connState == realtime.Disconnected && m.deps.Connection != nil:
		return mutedStyle.Render("Live updates paused, reconnecting...")
	}
	return ""
}

func (m *Model) renderHelp() string {
	help := "[1-5/Tab/Enter] Actions  [r] Refresh  [c] Cancel  [d] Got my order  [x] Dismiss  [q] Quit"
	if m.confirmCancel {
		help = "[Tab/Enter] Choose  [y] Cancel the order  [n] Keep it"
	}
	return m.actions.View() + "\n" + mutedStyle.Render(help)
}
