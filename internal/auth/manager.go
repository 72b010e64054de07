// Package auth holds the DeliHood credential pair. Access and refresh tokens
// are written as a single record so the store never holds one without the
// other.
package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/delihood/client/internal/logging"
	"github.com/delihood/client/internal/models"
)

// credentialsKey is the storage key of the single credentials record.
const credentialsKey = "credentials"

// SecureStorage interface for abstracting secure credential storage mechanisms
type SecureStorage interface {
	Store(key, value string) error
	Retrieve(key string) (string, error)
	Delete(key string) error
	Clear() error
	Exists(key string) bool
}

// TokenClaims are the fields of the access token the client cares about.
type TokenClaims struct {
	UserID    int
	Subject   string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (c *TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Manager implements interfaces.TokenStore on top of a SecureStorage
type Manager struct {
	secureStorage SecureStorage
	cached        *models.Credentials
	loaded        bool
	mutex         sync.RWMutex
	logger        *logging.Logger
}

// NewManager creates a token store backed by storage
func NewManager(storage SecureStorage) (*Manager, error) {
	if storage == nil {
		return nil, fmt.Errorf("secure storage cannot be nil")
	}

	return &Manager{
		secureStorage: storage,
		logger:        logging.GetAuthLogger(),
	}, nil
}

// Save persists both tokens as one record. A pair with a missing half is
// rejected.
func (m *Manager) Save(creds models.Credentials) error {
	if !creds.Complete() {
		return fmt.Errorf("credentials must contain both an access and a refresh token")
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := m.secureStorage.Store(credentialsKey, string(data)); err != nil {
		return fmt.Errorf("failed to store credentials securely: %w", err)
	}

	m.cached = &creds
	m.loaded = true
	m.logger.Debug("Credentials saved")
	return nil
}

// AccessToken returns the stored access token
func (m *Manager) AccessToken() (string, bool) {
	creds := m.load()
	if creds == nil {
		return "", false
	}
	return creds.AccessToken, true
}

// RefreshToken returns the stored refresh token
func (m *Manager) RefreshToken() (string, bool) {
	creds := m.load()
	if creds == nil {
		return "", false
	}
	return creds.RefreshToken, true
}

// Clear removes both tokens
func (m *Manager) Clear() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cached = nil
	m.loaded = true

	if err := m.secureStorage.Delete(credentialsKey); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	m.logger.Debug("Credentials cleared")
	return nil
}

// SignedIn reports whether a complete credential pair is stored.
func (m *Manager) SignedIn() bool {
	return m.load() != nil
}

// load returns the cached credentials, reading storage on first use.
func (m *Manager) load() *models.Credentials {
	m.mutex.RLock()
	if m.loaded {
		creds := m.cached
		m.mutex.RUnlock()
		return creds
	}
	m.mutex.RUnlock()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.loaded {
		return m.cached
	}

	m.loaded = true
	raw, err := m.secureStorage.Retrieve(credentialsKey)
	if err != nil {
		return nil
	}

	var creds models.Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil || !creds.Complete() {
		m.logger.Warn("Discarding unreadable credentials record")
		return nil
	}
	m.cached = &creds
	return m.cached
}

// Claims decodes the access token without verifying its signature. The
// backend is the only party that verifies; the client only reads.
func (m *Manager) Claims() (*TokenClaims, error) {
	token, ok := m.AccessToken()
	if !ok {
		return nil, fmt.Errorf("no access token stored")
	}
	return ParseClaims(token)
}

// ParseClaims extracts TokenClaims from an unverified JWT.
func ParseClaims(token string) (*TokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode access token: %w", err)
	}

	result := &TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		result.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}

	switch id := claims["id"].(type) {
	case float64:
		result.UserID = int(id)
	case string:
		result.UserID, _ = strconv.Atoi(id)
	}
	if result.UserID == 0 && result.Subject != "" {
		result.UserID, _ = strconv.Atoi(result.Subject)
	}

	return result, nil
}

// InMemorySecureStorage provides a simple in-memory secure storage implementation
type InMemorySecureStorage struct {
	data  map[string]string
	mutex sync.RWMutex
}

// NewInMemorySecureStorage creates a new in-memory secure storage instance
func NewInMemorySecureStorage() *InMemorySecureStorage {
	return &InMemorySecureStorage{
		data: make(map[string]string),
	}
}

// Store implements SecureStorage.Store
func (s *InMemorySecureStorage) Store(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = value
	return nil
}

// Retrieve implements SecureStorage.Retrieve
func (s *InMemorySecureStorage) Retrieve(key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, exists := s.data[key]
	if !exists {
		return "", fmt.Errorf("key not found")
	}
	return value, nil
}

// Delete implements SecureStorage.Delete
func (s *InMemorySecureStorage) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.data, key)
	return nil
}

// Clear implements SecureStorage.Clear
func (s *InMemorySecureStorage) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data = make(map[string]string)
	return nil
}

// Exists implements SecureStorage.Exists
func (s *InMemorySecureStorage) Exists(key string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, exists := s.data[key]
	return exists
}
