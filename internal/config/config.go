// Package config loads and persists DeliHood client profiles from a YAML file
// under the user's XDG config directory.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/delihood/client/internal/interfaces"
	"gopkg.in/yaml.v3"
)

// Ordering policy names accepted in profiles.
const (
	PolicyOrdered       = "ordered"
	PolicyLastWriteWins = "last_write_wins"
)

// Defaults applied to any profile field left empty.
const (
	DefaultBaseURL        = "http://localhost:8080"
	DefaultRequestTimeout = 30 * time.Second
	DefaultPollInterval   = 15 * time.Second
	DefaultReconnectDelay = 2 * time.Second
	DefaultProfileName    = "default"
)

// Environment overrides.
const (
	EnvBaseURL = "DELIHOOD_BASE_URL"
	EnvDebug   = "DELIHOOD_DEBUG"
)

// Config represents the complete configuration file structure
type Config struct {
	Profiles map[string]interfaces.Profile `yaml:"profiles"`
	Log      interfaces.LogSettings        `yaml:"log"`
}

// Manager implements the ConfigManager interface
type Manager struct {
	configPath   string
	cachedConfig *Config
}

// NewManager creates a configuration manager at the OS-appropriate path.
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to determine configuration path: %w", err)
	}
	return NewManagerAt(configPath)
}

// NewManagerAt creates a configuration manager backed by configPath.
func NewManagerAt(configPath string) (*Manager, error) {
	manager := &Manager{configPath: configPath}

	if err := manager.ensureConfigDirectory(); err != nil {
		return nil, fmt.Errorf("failed to create configuration directory: %w", err)
	}

	return manager, nil
}

// getConfigPath determines the OS-appropriate configuration file path
func getConfigPath() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "delihood", "config.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "delihood", "config.yaml"), nil
}

// ensureConfigDirectory creates the configuration directory owner-only
func (m *Manager) ensureConfigDirectory() error {
	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// loadConfig reads and parses the configuration file, creating defaults if necessary
func (m *Manager) loadConfig() (*Config, error) {
	if m.cachedConfig != nil {
		return m.cachedConfig, nil
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		config := createDefaultConfig()
		if err := m.saveConfig(config); err != nil {
			return nil, fmt.Errorf("failed to create default configuration: %w", err)
		}
		m.cachedConfig = config
		return config, nil
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}
	if config.Profiles == nil {
		config.Profiles = make(map[string]interfaces.Profile)
	}

	m.cachedConfig = &config
	return &config, nil
}

// saveConfig writes the configuration to disk
func (m *Manager) saveConfig(config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// createDefaultConfig generates the configuration written on first run
func createDefaultConfig() *Config {
	return &Config{
		Profiles: map[string]interfaces.Profile{
			DefaultProfileName: {
				Name:           DefaultProfileName,
				BaseURL:        DefaultBaseURL,
				RequestTimeout: DefaultRequestTimeout,
				PollInterval:   DefaultPollInterval,
				Reconnect: interfaces.ReconnectConfig{
					MaxAttempts: 0,
					Delay:       DefaultReconnectDelay,
				},
				OrderingPolicy: PolicyOrdered,
				Theme:          "github",
			},
		},
		Log: interfaces.LogSettings{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills unset profile fields.
func applyDefaults(profile *interfaces.Profile) {
	if profile.BaseURL == "" {
		profile.BaseURL = DefaultBaseURL
	}
	if override := os.Getenv(EnvBaseURL); override != "" {
		profile.BaseURL = override
	}
	profile.BaseURL = strings.TrimRight(profile.BaseURL, "/")
	if profile.RealtimeURL == "" {
		profile.RealtimeURL = RealtimeURLFor(profile.BaseURL)
	}
	if profile.RequestTimeout <= 0 {
		profile.RequestTimeout = DefaultRequestTimeout
	}
	if profile.PollInterval == 0 {
		profile.PollInterval = DefaultPollInterval
	}
	if profile.Reconnect.Delay <= 0 {
		profile.Reconnect.Delay = DefaultReconnectDelay
	}
	if profile.OrderingPolicy == "" {
		profile.OrderingPolicy = PolicyOrdered
	}
	if profile.Theme == "" {
		profile.Theme = "github"
	}
}

// RealtimeURLFor derives the websocket endpoint from the REST base URL.
func RealtimeURLFor(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// LoadProfile retrieves a profile by name from the configuration file
func (m *Manager) LoadProfile(name string) (*interfaces.Profile, error) {
	config, err := m.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	profile, exists := config.Profiles[name]
	if !exists {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}

	profile.Name = name
	applyDefaults(&profile)

	if err := m.ValidateProfile(&profile); err != nil {
		return nil, fmt.Errorf("profile '%s' is invalid: %w", name, err)
	}

	return &profile, nil
}

// SaveProfile persists a profile to the configuration file
func (m *Manager) SaveProfile(profile *interfaces.Profile) error {
	if err := m.ValidateProfile(profile); err != nil {
		return fmt.Errorf("cannot save invalid profile: %w", err)
	}

	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Profiles[profile.Name] = *profile

	if err := m.saveConfig(config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	m.cachedConfig = config
	return nil
}

// ListProfiles returns all available profile names, sorted
func (m *Manager) ListProfiles() ([]string, error) {
	config, err := m.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	names := make([]string, 0, len(config.Profiles))
	for name := range config.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LogSettings returns the logging section, with DELIHOOD_DEBUG forcing debug.
func (m *Manager) LogSettings() (interfaces.LogSettings, error) {
	config, err := m.loadConfig()
	if err != nil {
		return interfaces.LogSettings{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	settings := config.Log
	if os.Getenv(EnvDebug) == "true" {
		settings.Level = "debug"
	}
	return settings, nil
}

// ValidateProfile ensures profile has all required fields
func (m *Manager) ValidateProfile(profile *interfaces.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile cannot be nil")
	}

	if strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	u, err := url.Parse(profile.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL (e.g., http://localhost:8080)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported base_url scheme: %s", u.Scheme)
	}

	if profile.RealtimeURL != "" {
		ru, err := url.Parse(profile.RealtimeURL)
		if err != nil || (ru.Scheme != "ws" && ru.Scheme != "wss") {
			return fmt.Errorf("realtime_url must use ws or wss")
		}
	}

	if profile.PollInterval < 0 {
		return fmt.Errorf("poll_interval cannot be negative")
	}

	if profile.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts cannot be negative")
	}

	switch profile.OrderingPolicy {
	case "", PolicyOrdered, PolicyLastWriteWins:
	default:
		return fmt.Errorf("unsupported ordering_policy: %s", profile.OrderingPolicy)
	}

	return nil
}

// GetConfigPath returns the path to the configuration file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// InvalidateCache clears the cached configuration, forcing a reload on next access
func (m *Manager) InvalidateCache() {
	m.cachedConfig = nil
}

// DeleteProfile removes a profile from the configuration
func (m *Manager) DeleteProfile(name string) error {
	config, err := m.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, exists := config.Profiles[name]; !exists {
		return fmt.Errorf("profile '%s' does not exist", name)
	}

	if name == DefaultProfileName {
		return fmt.Errorf("cannot delete the default profile")
	}

	delete(config.Profiles, name)

	if err := m.saveConfig(config); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	m.cachedConfig = config
	return nil
}
