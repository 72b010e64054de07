package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/delihood/client/internal/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManagerAt(filepath.Join(t.TempDir(), "delihood", "config.yaml"))
	require.NoError(t, err)
	return m
}

func TestLoadProfileCreatesDefaultConfig(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	m := newTestManager(t)

	profile, err := m.LoadProfile(DefaultProfileName)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, profile.BaseURL)
	assert.Equal(t, "ws://localhost:8080/ws", profile.RealtimeURL)
	assert.Equal(t, PolicyOrdered, profile.OrderingPolicy)
	assert.Equal(t, DefaultReconnectDelay, profile.Reconnect.Delay)

	_, err = os.Stat(m.GetConfigPath())
	assert.NoError(t, err, "default config should be written on first load")
}

func TestSaveAndReloadProfile(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	m := newTestManager(t)

	staging := &interfaces.Profile{
		Name:           "staging",
		BaseURL:        "https://staging.delihood.example/",
		PollInterval:   5 * time.Second,
		OrderingPolicy: PolicyLastWriteWins,
		Reconnect:      interfaces.ReconnectConfig{MaxAttempts: 3, Delay: time.Second},
	}
	require.NoError(t, m.SaveProfile(staging))

	m.InvalidateCache()
	loaded, err := m.LoadProfile("staging")
	require.NoError(t, err)

	assert.Equal(t, "https://staging.delihood.example", loaded.BaseURL)
	assert.Equal(t, "wss://staging.delihood.example/ws", loaded.RealtimeURL)
	assert.Equal(t, 5*time.Second, loaded.PollInterval)
	assert.Equal(t, 3, loaded.Reconnect.MaxAttempts)
	assert.Equal(t, PolicyLastWriteWins, loaded.OrderingPolicy)

	names, err := m.ListProfiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "staging"}, names)
}

func TestValidateProfile(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		name    string
		profile *interfaces.Profile
		wantErr bool
	}{
		{"nil", nil, true},
		{"empty name", &interfaces.Profile{BaseURL: "http://x"}, true},
		{"relative url", &interfaces.Profile{Name: "a", BaseURL: "/api"}, true},
		{"bad scheme", &interfaces.Profile{Name: "a", BaseURL: "ftp://x"}, true},
		{"bad realtime scheme", &interfaces.Profile{Name: "a", BaseURL: "http://x", RealtimeURL: "http://x/ws"}, true},
		{"unknown policy", &interfaces.Profile{Name: "a", BaseURL: "http://x", OrderingPolicy: "random"}, true},
		{"negative attempts", &interfaces.Profile{Name: "a", BaseURL: "http://x", Reconnect: interfaces.ReconnectConfig{MaxAttempts: -1}}, true},
		{"valid", &interfaces.Profile{Name: "a", BaseURL: "http://x", OrderingPolicy: PolicyOrdered}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateProfile(tt.profile)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	m := newTestManager(t)
	t.Setenv(EnvBaseURL, "https://override.example")
	t.Setenv(EnvDebug, "true")

	profile, err := m.LoadProfile(DefaultProfileName)
	require.NoError(t, err)
	assert.Equal(t, "https://override.example", profile.BaseURL)

	settings, err := m.LogSettings()
	require.NoError(t, err)
	assert.Equal(t, "debug", settings.Level)
}

func TestDeleteProfile(t *testing.T) {
	m := newTestManager(t)

	assert.Error(t, m.DeleteProfile(DefaultProfileName))
	assert.Error(t, m.DeleteProfile("missing"))

	require.NoError(t, m.SaveProfile(&interfaces.Profile{Name: "tmp", BaseURL: "http://localhost:9000"}))
	require.NoError(t, m.DeleteProfile("tmp"))

	_, err := m.LoadProfile("tmp")
	assert.Error(t, err)
}

func TestSecurityManagerRoundTrip(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "security", "master.key")

	sm, err := NewSecurityManager(keyPath)
	require.NoError(t, err)

	sealed, err := sm.Encrypt([]byte(`{"accessToken":"a"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "accessToken")

	// A second manager over the same key file derives the same key.
	again, err := NewSecurityManager(keyPath)
	require.NoError(t, err)

	plain, err := again.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"accessToken":"a"}`, string(plain))

	_, err = again.Decrypt([]byte("short"))
	assert.Error(t, err)

	require.NoError(t, again.ClearSecurityData())
	_, err = again.Encrypt([]byte("x"))
	assert.Error(t, err)
}
