package login

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	errMissingEmail    = errors.New("enter your email address")
	errMissingPassword = errors.New("enter your password")
)

// Update handles messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ResultMsg:
		m.submitting = false
		if msg.Err != nil {
			m.err = msg.Err
			m.passwordInput.SetValue("")
			m.setFocus(FocusPassword)
		}
		return m, nil

	case spinner.TickMsg:
		if m.submitting {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		// Ignore input while a request is running.
		if m.submitting {
			if msg.Type == tea.KeyCtrlC {
				return m, tea.Quit
			}
			return m, nil
		}
		if cmd, handled := m.handleKeys(msg); handled {
			return m, cmd
		}
	}

	if m.focusState == FocusEmail {
		m.emailInput, cmd = m.emailInput.Update(msg)
	} else {
		m.passwordInput, cmd = m.passwordInput.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKeys processes navigation and submission. It reports whether the key
// was consumed.
func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return tea.Quit, true

	case "tab", "shift+tab", "up", "down":
		if m.focusState == FocusEmail {
			m.setFocus(FocusPassword)
		} else {
			m.setFocus(FocusEmail)
		}
		return nil, true

	case "ctrl+d":
		m.showDetails = !m.showDetails
		return nil, true

	case "enter":
		if m.focusState == FocusEmail {
			m.setFocus(FocusPassword)
			return nil, true
		}
		return m.trySubmit(), true
	}

	// Clear the error once the user types again.
	m.err = nil
	return nil, false
}

func (m *Model) trySubmit() tea.Cmd {
	switch {
	case strings.TrimSpace(m.emailInput.Value()) == "":
		m.err = errMissingEmail
		m.setFocus(FocusEmail)
		return nil
	case m.passwordInput.Value() == "":
		m.err = errMissingPassword
		return nil
	}

	m.err = nil
	m.submitting = true
	return tea.Batch(m.submit(), m.spinner.Tick)
}
