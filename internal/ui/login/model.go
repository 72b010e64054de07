// Package login implements the sign-in screen: email and password inputs
// that exchange credentials for a token pair.
package login

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/delihood/client/internal/interfaces"
)

const loginTimeout = 30 * time.Second

// FocusState represents which input is currently focused.
type FocusState int

const (
	FocusEmail FocusState = iota
	FocusPassword
)

// ResultMsg is sent after a login attempt. The parent controller switches to
// the order view when Err is nil.
type ResultMsg struct {
	Email string
	Err   error
}

// Model is the state of the sign-in screen.
type Model struct {
	session interfaces.SessionAPI

	emailInput    textinput.Model
	passwordInput textinput.Model
	spinner       spinner.Model
	focusState    FocusState
	submitting    bool
	err           error
	showDetails   bool

	width  int
	height int
}

// New creates the sign-in screen, prefilling email when given.
func New(session interfaces.SessionAPI, email string) *Model {
	emailInput := textinput.New()
	emailInput.Placeholder = "you@example.com"
	emailInput.CharLimit = 254
	emailInput.Width = 40
	emailInput.SetValue(email)

	passwordInput := textinput.New()
	passwordInput.Placeholder = "password"
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'
	passwordInput.CharLimit = 128
	passwordInput.Width = 40

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := &Model{
		session:       session,
		emailInput:    emailInput,
		passwordInput: passwordInput,
		spinner:       s,
	}
	if email != "" {
		m.setFocus(FocusPassword)
	} else {
		m.setFocus(FocusEmail)
	}
	return m
}

// Init starts the cursor blink.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Err returns the last login failure.
func (m *Model) Err() error {
	return m.err
}

// Submitting reports whether a login is in flight.
func (m *Model) Submitting() bool {
	return m.submitting
}

func (m *Model) setFocus(focus FocusState) {
	m.focusState = focus
	if focus == FocusEmail {
		m.emailInput.Focus()
		m.passwordInput.Blur()
	} else {
		m.passwordInput.Focus()
		m.emailInput.Blur()
	}
}

// submit is a command performing the login request.
func (m *Model) submit() tea.Cmd {
	email := strings.TrimSpace(m.emailInput.Value())
	password := m.passwordInput.Value()
	session := m.session

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		return ResultMsg{Email: email, Err: session.Login(ctx, email, password)}
	}
}
