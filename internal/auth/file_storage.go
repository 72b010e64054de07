package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/delihood/client/internal/config"
)

// FileSecureStorage keeps the key/value set in one encrypted file. Every
// write rewrites the whole file through a temp file and rename.
type FileSecureStorage struct {
	path     string
	security config.SecurityManager
	mutex    sync.Mutex
}

// NewFileSecureStorage creates a storage at path sealed by security.
func NewFileSecureStorage(path string, security config.SecurityManager) (*FileSecureStorage, error) {
	if security == nil {
		return nil, fmt.Errorf("security manager cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return &FileSecureStorage{path: path, security: security}, nil
}

func (s *FileSecureStorage) read() (map[string]string, error) {
	sealed, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	plain, err := s.security.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}

	data := make(map[string]string)
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return data, nil
}

func (s *FileSecureStorage) write(data map[string]string) error {
	plain, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}

	sealed, err := s.security.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("failed to seal token file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Store implements SecureStorage.Store
func (s *FileSecureStorage) Store(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data[key] = value
	return s.write(data)
}

// Retrieve implements SecureStorage.Retrieve
func (s *FileSecureStorage) Retrieve(key string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.read()
	if err != nil {
		return "", err
	}
	value, exists := data[key]
	if !exists {
		return "", fmt.Errorf("key not found")
	}
	return value, nil
}

// Delete implements SecureStorage.Delete
func (s *FileSecureStorage) Delete(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.read()
	if err != nil {
		// An unreadable file is replaced rather than kept around.
		return s.write(map[string]string{})
	}
	if _, exists := data[key]; !exists {
		return nil
	}
	delete(data, key)
	return s.write(data)
}

// Clear implements SecureStorage.Clear
func (s *FileSecureStorage) Clear() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// Exists implements SecureStorage.Exists
func (s *FileSecureStorage) Exists(key string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.read()
	if err != nil {
		return false
	}
	_, exists := data[key]
	return exists
}
