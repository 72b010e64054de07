// Package app provides the controller that owns the session lifecycle. It
// switches between the sign-in screen and the live order screen and starts
// or stops order tracking as the user signs in and out.
package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
	"github.com/delihood/client/internal/ui/login"
	"github.com/delihood/client/internal/ui/tracking"
)

const sessionTimeout = 15 * time.Second

// activeView determines which model is currently visible and receiving updates.
type activeView int

const (
	loginView activeView = iota
	trackingView
)

// sessionMsg is sent once the signed-in user has been resolved
type sessionMsg struct {
	user *models.User
	err  error
}

// ConsoleController is the root model. It manages the transitions between
// the sign-in and order screens.
type ConsoleController struct {
	services *Services
	ctx      context.Context

	loginModel    *login.Model
	trackingModel *tracking.Model
	currentView   activeView
	email         string

	width  int
	height int

	logger *logging.Logger
}

// NewConsoleController creates the controller. email prefills the sign-in
// form.
func NewConsoleController(ctx context.Context, services *Services, email string) *ConsoleController {
	return &ConsoleController{
		services:    services,
		ctx:         ctx,
		loginModel:  login.New(services.Client, email),
		currentView: loginView,
		email:       email,
		logger:      logging.GetUILogger(),
	}
}

// Init skips the sign-in screen when a credential pair is already stored
func (c *ConsoleController) Init() tea.Cmd {
	if c.services.Tokens.SignedIn() {
		return c.resolveSession()
	}
	return c.loginModel.Init()
}

// Close releases the order screen subscriptions
func (c *ConsoleController) Close() {
	if c.trackingModel != nil {
		c.trackingModel.Close()
		c.trackingModel = nil
	}
}

// resolveSession fetches the signed-in user
func (c *ConsoleController) resolveSession() tea.Cmd {
	client := c.services.Client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(c.ctx, sessionTimeout)
		defer cancel()
		user, err := client.Me(ctx)
		return sessionMsg{user: user, err: err}
	}
}

// Update handles all messages and delegates them to the active child model.
func (c *ConsoleController) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return c, tea.Quit
		}

	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		// Propagate size to child models
		c.loginModel.Update(msg)
		if c.trackingModel != nil {
			c.trackingModel.Update(msg)
		}
		return c, nil

	case login.ResultMsg:
		c.loginModel.Update(msg)
		if msg.Err != nil {
			return c, nil
		}
		c.email = msg.Email
		return c, c.resolveSession()

	case sessionMsg:
		return c, c.openTracking(msg)

	case tracking.LoggedOutMsg:
		if msg.Err != nil {
			c.logger.Warn("Server logout failed", "error", msg.Err)
		}
		return c, c.openLogin(nil)
	}

	// Delegate messages to the active model.
	switch c.currentView {
	case loginView:
		_, cmd = c.loginModel.Update(msg)
	case trackingView:
		_, cmd = c.trackingModel.Update(msg)
	}
	return c, cmd
}

// openTracking switches to the order screen and starts tracking. A session
// that can no longer be refreshed goes back to sign-in instead.
func (c *ConsoleController) openTracking(msg sessionMsg) tea.Cmd {
	if msg.err != nil {
		switch apperrors.KindOf(msg.err) {
		case apperrors.KindMissingCredentials, apperrors.KindRefreshExhausted, apperrors.KindCannotRefresh:
			c.logger.Info("Stored session is no longer valid", "error", msg.err)
			if err := c.services.Tokens.Clear(); err != nil {
				c.logger.Warn("Failed to clear stale credentials", "error", err)
			}
			return c.openLogin(msg.err)
		}
		c.logger.Warn("Failed to load user profile", "error", msg.err)
	}

	if err := c.services.StartTracking(c.ctx); err != nil {
		c.logger.Error("Failed to start order tracking", "error", err)
	}

	c.Close()
	model, err := tracking.New(c.ctx, tracking.Deps{
		Service:     c.services.Orders,
		Session:     c.services.Client,
		Inspector:   c.services.Client,
		Connection:  c.services.Channel,
		Highlighter: c.services.Highlighter,
		User:        msg.user,
	})
	if err != nil {
		c.services.StopTracking()
		return c.openLogin(err)
	}

	c.trackingModel = model
	c.currentView = trackingView
	c.trackingModel.Update(tea.WindowSizeMsg{Width: c.width, Height: c.height})
	return c.trackingModel.Init()
}

// openLogin stops tracking and shows a fresh sign-in screen, with err as
// its alert when given
func (c *ConsoleController) openLogin(err error) tea.Cmd {
	c.services.StopTracking()
	c.Close()

	c.loginModel = login.New(c.services.Client, c.email)
	c.loginModel.Update(tea.WindowSizeMsg{Width: c.width, Height: c.height})
	if err != nil {
		c.loginModel.Update(login.ResultMsg{Email: c.email, Err: err})
	}
	c.currentView = loginView
	return c.loginModel.Init()
}

// View renders the view of the currently active child model.
func (c *ConsoleController) View() string {
	switch c.currentView {
	case loginView:
		return c.loginModel.View()
	case trackingView:
		return c.trackingModel.View()
	default:
		return "Error: Unknown view state."
	}
}
