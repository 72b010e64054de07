package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderActions(cancelDisabled bool) []Action {
	return []Action{
		{ID: "refresh", Name: "Refresh", Kind: KindPrimary},
		{ID: "cancel", Name: "Cancel order", Kind: KindCancel, Disabled: cancelDisabled},
		{ID: "inspect", Name: "Inspect", Kind: KindInfo},
	}
}

func TestNewPaneHasNoSelection(t *testing.T) {
	p := NewPane()

	_, err := p.Selected()
	assert.Error(t, err)
	assert.Empty(t, p.View())
}

func TestFocusSkipsDisabledActions(t *testing.T) {
	p := NewPane()
	p.SetActions(orderActions(true))

	a, err := p.Selected()
	require.NoError(t, err)
	assert.Equal(t, "refresh", a.ID)

	p.Next()
	a, _ = p.Selected()
	assert.Equal(t, "inspect", a.ID)

	p.Next()
	a, _ = p.Selected()
	assert.Equal(t, "refresh", a.ID, "focus wraps around")

	p.Previous()
	a, _ = p.Selected()
	assert.Equal(t, "inspect", a.ID)
}

func TestAllDisabled(t *testing.T) {
	p := NewPane()
	p.SetActions([]Action{{ID: "a", Disabled: true}, {ID: "b", Disabled: true}})

	p.Next()
	_, err := p.Selected()
	assert.Error(t, err)
}

func TestByNumber(t *testing.T) {
	p := NewPane()
	p.SetActions(orderActions(true))

	a, ok := p.ByNumber(3)
	require.True(t, ok)
	assert.Equal(t, "inspect", a.ID)

	_, ok = p.ByNumber(2)
	assert.False(t, ok, "disabled action")

	_, ok = p.ByNumber(0)
	assert.False(t, ok)
	_, ok = p.ByNumber(9)
	assert.False(t, ok)
}

func TestSetActionsKeepsFocus(t *testing.T) {
	p := NewPane()
	p.SetActions(orderActions(false))
	p.Next()
	a, _ := p.Selected()
	require.Equal(t, "cancel", a.ID)

	p.SetActions(orderActions(false))
	a, _ = p.Selected()
	assert.Equal(t, "cancel", a.ID)

	p.SetActions(orderActions(true))
	a, _ = p.Selected()
	assert.Equal(t, "refresh", a.ID, "focus leaves an action once it is disabled")
}

func TestActionsReturnsCopy(t *testing.T) {
	p := NewPane()
	p.SetActions(orderActions(false))

	list := p.Actions()
	list[0].Name = "changed"
	assert.Equal(t, "Refresh", p.Actions()[0].Name)
}

func TestTitle(t *testing.T) {
	p := NewPane()
	p.SetActions(orderActions(false))
	assert.Contains(t, p.View(), "Actions")

	p.SetActions([]Action{
		{ID: "yes", Name: "Yes, cancel it", Kind: KindConfirmation},
		{ID: "no", Name: "Keep my order", Kind: KindCancel},
	})
	view := p.View()
	assert.Contains(t, view, "Confirmation Required")
	assert.Contains(t, view, "[1] ✅ Yes, cancel it")
	assert.Contains(t, view, "[2] ❌ Keep my order")
}

func TestCustomIcon(t *testing.T) {
	p := NewPane()
	p.SetActions([]Action{{ID: "x", Name: "Track", Icon: "🛵"}})
	assert.Contains(t, p.View(), "[1] 🛵 Track")
}
