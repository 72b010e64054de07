// Package components provides the shared pieces of the DeliHood terminal UI:
// status badges, the lifecycle progress line, the alert pane and the JSON
// inspector highlighter.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/delihood/client/internal/models"
)

// statusStyles maps status strings to their corresponding visual style.
var statusStyles = map[string]lipgloss.Style{
	"pending": lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
	"success": lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
	"error":   lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
	"warning": lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387")),
	"info":    lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")),
	"running": lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
}

// statusIcons maps status strings to their corresponding icon.
var statusIcons = map[string]string{
	"pending": "⏳",
	"success": "✅",
	"error":   "❌",
	"warning": "⚠️",
	"info":    "ℹ️",
	"running": "🛵",
}

// RenderStatus formats a status message with an appropriate icon and color.
func RenderStatus(status, message string) string {
	style, exists := statusStyles[status]
	if !exists {
		style = lipgloss.NewStyle()
	}

	icon, exists := statusIcons[status]
	if !exists {
		icon = "🔹"
	}

	return style.Render(fmt.Sprintf("%s %s", icon, message))
}

// StatusText is the headline and explanation shown for an order status
type StatusText struct {
	Title  string
	Detail string
}

var orderTexts = map[models.OrderStatus]StatusText{
	models.StatusPaid: {
		Title:  "Waiting for your cook to accept your order.",
		Detail: "The payment was successful and now we're waiting for the cook to accept.",
	},
	models.StatusAccepted: {
		Title:  "Your order is being prepared...",
		Detail: "The cook is making your order right now. You will receive a notification once it's ready!",
	},
	models.StatusWaitingForPickup: {
		Title:  "Food ready, waiting for driver!",
		Detail: "The food is hot n ready! Waiting for the driver to pickup your order.",
	},
	models.StatusDelivering: {
		Title:  "The food is on the way!",
		Detail: "Driver is already on the way to deliver your order. They'll call you when it's there.",
	},
	models.StatusDropoffReady: {
		Title:  "Your driver has arrived!",
		Detail: "The driver is at your address. Confirm once you have your meal.",
	},
	models.StatusDelivered: {
		Title:  "Done! Your order is at your doorstep.",
		Detail: "Come pickup your delicious meal and bon appetit!",
	},
	models.StatusCancelled: {
		Title:  "Oops, your order has been cancelled...",
		Detail: "The order has been cancelled, please contact support if this was a mistake.",
	},
}

var noStatusText = StatusText{
	Title:  "No order status",
	Detail: "We were unable to get your order status, please try to restart the app.",
}

// OrderStatusText returns the copy for status; unknown or empty statuses get
// the "no order status" text
func OrderStatusText(status models.OrderStatus) StatusText {
	if text, ok := orderTexts[status]; ok {
		return text
	}
	return noStatusText
}

// badgeKind picks the generic status style for an order status
func badgeKind(status models.OrderStatus) string {
	switch status {
	case models.StatusPaid:
		return "pending"
	case models.StatusDelivered:
		return "success"
	case models.StatusCancelled:
		return "error"
	case models.StatusDropoffReady:
		return "warning"
	case "":
		return "info"
	default:
		return "running"
	}
}

var badgeStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

// RenderOrderBadge renders the status headline with its icon
func RenderOrderBadge(status models.OrderStatus) string {
	return badgeStyle.Render(RenderStatus(badgeKind(status), OrderStatusText(status).Title))
}

var (
	stepDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	stepCurrentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9E2AF"))
	stepTodoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	cancelledStyle   = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("#F38BA8"))
)

var stepLabels = map[models.OrderStatus]string{
	models.StatusPaid:             "paid",
	models.StatusAccepted:         "cooking",
	models.StatusWaitingForPickup: "ready",
	models.StatusDelivering:       "on the way",
	models.StatusDropoffReady:     "arrived",
	models.StatusDelivered:        "delivered",
}

// RenderLifecycle renders the lifecycle steps with the current one
// highlighted, followed by a progress bar of the given width
func RenderLifecycle(status models.OrderStatus, width int) string {
	steps := models.Lifecycle()
	current := status.Rank()

	parts := make([]string, 0, len(steps))
	for i, step := range steps {
		label := stepLabels[step]
		switch {
		case status == models.StatusCancelled:
			parts = append(parts, cancelledStyle.Render(label))
		case i < current:
			parts = append(parts, stepDoneStyle.Render("✓ "+label))
		case i == current:
			parts = append(parts, stepCurrentStyle.Render("● "+label))
		default:
			parts = append(parts, stepTodoStyle.Render("○ "+label))
		}
	}

	line := strings.Join(parts, stepTodoStyle.Render(" › "))
	if width <= 0 {
		return line
	}
	return line + "\n" + RenderProgressBar(LifecycleProgress(status), width, "█", "░")
}

// LifecycleProgress is the percentage of the lifecycle completed at status
func LifecycleProgress(status models.OrderStatus) int {
	rank := status.Rank()
	if rank < 0 {
		return 0
	}
	last := len(models.Lifecycle()) - 1
	return rank * 100 / last
}

// RenderProgressBar creates a visual textual progress bar.
// - progress: The percentage of completion (0-100).
// - width: The total width of the bar in characters.
func RenderProgressBar(progress int, width int, fillChar, emptyChar string) string {
	if width <= 0 {
		return ""
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	filledWidth := (progress * width) / 100
	emptyWidth := width - filledWidth

	filled := strings.Repeat(fillChar, filledWidth)
	empty := strings.Repeat(emptyChar, emptyWidth)

	return fmt.Sprintf("[%s%s]", filled, empty)
}

// RenderConnection renders the realtime connection indicator
func RenderConnection(state string) string {
	switch state {
	case "connected":
		return RenderStatus("success", "live")
	case "connecting":
		return RenderStatus("pending", "connecting")
	default:
		return RenderStatus("error", "offline")
	}
}
