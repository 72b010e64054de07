package login

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/delihood/client/internal/errors"
	"github.com/delihood/client/internal/models"
)

type fakeSession struct {
	email, password string
	err             error
}

func (f *fakeSession) Login(ctx context.Context, email, password string) error {
	f.email, f.password = email, password
	return f.err
}

func (f *fakeSession) Logout(ctx context.Context) error { return nil }

func (f *fakeSession) Me(ctx context.Context) (*models.User, error) { return &models.User{}, nil }

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// runFirst executes cmd and, for a batch, only its first command
func runFirst(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		require.NotEmpty(t, batch)
		return batch[0]()
	}
	return msg
}

func TestSubmitSendsCredentials(t *testing.T) {
	session := &fakeSession{}
	m := New(session, "ann@example.com")
	assert.Equal(t, FocusPassword, m.focusState)

	typeText(m, "secret")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.Submitting())

	msg := runFirst(t, cmd)
	result, ok := msg.(ResultMsg)
	require.True(t, ok)
	assert.NoError(t, result.Err)
	assert.Equal(t, "ann@example.com", session.email)
	assert.Equal(t, "secret", session.password)
}

func TestEmptyFieldsAreNotSubmitted(t *testing.T) {
	m := New(&fakeSession{}, "")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, FocusPassword, m.focusState)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.ErrorIs(t, m.Err(), errMissingEmail)
	assert.Equal(t, FocusEmail, m.focusState)
	assert.False(t, m.Submitting())
}

func TestFailedLoginShowsAlert(t *testing.T) {
	m := New(&fakeSession{}, "ann@example.com")
	typeText(m, "nope")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	m.Update(ResultMsg{Email: "ann@example.com", Err: apperrors.New(apperrors.KindWrongPasswordOrEmail, "POST /auth/login")})

	assert.False(t, m.Submitting())
	assert.ErrorIs(t, m.Err(), apperrors.ErrWrongPasswordOrEmail)
	assert.Empty(t, m.passwordInput.Value())
	assert.Contains(t, m.View(), "Wrong password or email")
}
