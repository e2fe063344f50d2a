package crypto

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "letta-sync"
	keyringUser    = "settings-key"
)

var (
	// fallbackMode indicates if we're using file-based fallback (headless systems)
	fallbackMode    bool
	fallbackModeMu  sync.RWMutex
	fallbackChecked bool
)

// checkKeyringAvailable tests if system keyring is available
func checkKeyringAvailable() bool {
	fallbackModeMu.Lock()
	defer fallbackModeMu.Unlock()

	if fallbackChecked {
		return !fallbackMode
	}

	testKey := "letta-sync-keyring-test"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		fallbackMode = true
		fallbackChecked = true
		return false
	}

	_ = keyring.Delete(keyringService, testKey)
	fallbackChecked = true
	return true
}

// isFallbackMode returns true if using file-based fallback
func isFallbackMode() bool {
	fallbackModeMu.RLock()
	defer fallbackModeMu.RUnlock()
	return fallbackMode
}

// getFallbackPath returns the path for fallback key storage
func getFallbackPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".letta-sync", ".credential"), nil
}

// StoreSecret stores the settings-file encryption key in the system keyring,
// or in a 0600 fallback file on systems where no keyring is reachable (CI
// runners, headless containers).
func StoreSecret(key string) error {
	encoded := base64.StdEncoding.EncodeToString([]byte(key))

	if checkKeyringAvailable() {
		if err := keyring.Set(keyringService, keyringUser, encoded); err != nil {
			return fmt.Errorf("failed to store key in keyring: %w", err)
		}
		return nil
	}

	return storeFallbackKey(encoded)
}

// RetrieveSecret retrieves the settings-file encryption key from the system
// keyring or fallback file.
func RetrieveSecret() (string, error) {
	var encoded string
	var err error

	if !isFallbackMode() && checkKeyringAvailable() {
		encoded, err = keyring.Get(keyringService, keyringUser)
		if err != nil {
			return "", fmt.Errorf("key not found in keyring: %w", err)
		}
	} else {
		encoded, err = retrieveFallbackKey()
		if err != nil {
			return "", fmt.Errorf("key not found in fallback: %w", err)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode key: %w", err)
	}

	return string(decoded), nil
}

// DeleteSecret removes the cached settings-file encryption key from keyring
// and fallback file.
func DeleteSecret() error {
	var keyringErr, fallbackErr error

	if !isFallbackMode() {
		keyringErr = keyring.Delete(keyringService, keyringUser)
	}
	fallbackErr = deleteFallbackKey()

	if keyringErr != nil && fallbackErr != nil {
		return fmt.Errorf("failed to delete key from keyring and fallback")
	}

	return nil
}

// HasStoredKey checks if there's a cached settings-file encryption key available.
func HasStoredKey() bool {
	if !isFallbackMode() && checkKeyringAvailable() {
		_, err := keyring.Get(keyringService, keyringUser)
		if err == nil {
			return true
		}
	}

	path, err := getFallbackPath()
	if err != nil {
		return false
	}

	_, err = os.Stat(path)
	return err == nil
}

func storeFallbackKey(encoded string) error {
	path, err := getFallbackPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write fallback key: %w", err)
	}

	return nil
}

func retrieveFallbackKey() (string, error) {
	path, err := getFallbackPath()
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func deleteFallbackKey() error {
	path, err := getFallbackPath()
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

// GetStorageMode returns a string describing the current storage mode.
func GetStorageMode() string {
	if !fallbackChecked {
		checkKeyringAvailable()
	}

	if isFallbackMode() {
		return "file-based (keyring unavailable)"
	}
	return "system-keyring"
}
