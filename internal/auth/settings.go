package auth

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/letta-ai/letta-sync/internal/crypto"
	"github.com/letta-ai/letta-sync/internal/errkind"
)

const (
	settingsDirNew    = ".letta"
	settingsDirLegacy = ".ramorie"
	settingsFileName  = "settings.json"
)

// Settings is the local fallback credential store, persisted the way the
// teacher's internal/config.Config was, with the api_key field encrypted
// at rest instead of stored in the clear.
type Settings struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"-"`

	EncryptedAPIKey string `json:"encrypted_api_key,omitempty"`
	APIKeyNonce     string `json:"api_key_nonce,omitempty"`
	APIKeySalt      string `json:"api_key_salt,omitempty"`
}

// DefaultSettingsPath returns ~/.letta/settings.json.
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, settingsDirNew, settingsFileName), nil
}

func legacySettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, settingsDirLegacy, "config.json"), nil
}

// Load reads the settings file at path (DefaultSettingsPath() if path is
// empty), falling back to the teacher's legacy location and migrating it
// forward on read, then decrypts api_key using a key the OS keyring (or
// its file-based fallback, see internal/crypto/keyring.go) stores.
func Load(path string) (Settings, error) {
	if path == "" {
		p, err := DefaultSettingsPath()
		if err != nil {
			return Settings{}, err
		}
		path = p
	}

	raw, err := readSettingsFile(path)
	if err != nil {
		return Settings{}, err
	}
	if raw == nil {
		return Settings{}, nil
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return Settings{}, errkind.Wrap(errkind.Validation, err).WithField(path)
	}

	settings := Settings{
		BaseURL:         v.GetString("base_url"),
		EncryptedAPIKey: v.GetString("encrypted_api_key"),
		APIKeyNonce:     v.GetString("api_key_nonce"),
		APIKeySalt:      v.GetString("api_key_salt"),
	}

	if settings.EncryptedAPIKey != "" {
		salt, err := crypto.Base64ToBytes(settings.APIKeySalt)
		if err != nil {
			return Settings{}, errkind.Wrap(errkind.Validation, err)
		}
		key, err := encryptionKey(salt)
		if err != nil {
			return Settings{}, err
		}
		plain, err := crypto.DecryptFromBase64(settings.EncryptedAPIKey, settings.APIKeyNonce, key)
		if err != nil {
			return Settings{}, errkind.Wrap(errkind.Validation, err).WithSuggestion("run `auth login` again")
		}
		settings.APIKey = plain
	}

	return settings, nil
}

// Save writes settings to path (DefaultSettingsPath() if empty),
// encrypting APIKey at rest.
func Save(path string, settings Settings) error {
	if path == "" {
		p, err := DefaultSettingsPath()
		if err != nil {
			return err
		}
		path = p
	}

	if settings.APIKey != "" {
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return err
		}
		key, err := encryptionKey(salt)
		if err != nil {
			return err
		}
		ciphertext, nonce, err := crypto.EncryptToBase64(settings.APIKey, key)
		if err != nil {
			return err
		}
		settings.EncryptedAPIKey = ciphertext
		settings.APIKeyNonce = nonce
		settings.APIKeySalt = crypto.BytesToBase64(salt)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func readSettingsFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	legacy, lerr := legacySettingsPath()
	if lerr != nil {
		return nil, nil
	}
	data, err = os.ReadFile(legacy)
	if err != nil {
		return nil, nil
	}

	// Migrate the legacy file forward; best effort, the caller still gets
	// this read's contents either way.
	_ = os.MkdirAll(filepath.Dir(path), 0700)
	_ = os.WriteFile(path, data, 0600)
	return data, nil
}

// devicePassphrase returns a per-machine random passphrase cached in the
// OS keyring (or its file-based fallback, see internal/crypto/keyring.go),
// generating one on first use - the same caching pattern the teacher's
// internal/crypto/keyring.go used for its vault's symmetric key, minus
// the multi-org key hierarchy this repo has no use for.
func devicePassphrase() (string, error) {
	if crypto.HasStoredKey() {
		if raw, err := crypto.RetrieveSecret(); err == nil && raw != "" {
			return raw, nil
		}
	}

	raw, err := crypto.GenerateRandomBytes(crypto.KeyLength)
	if err != nil {
		return "", err
	}
	passphrase := crypto.BytesToBase64(raw)
	_ = crypto.StoreSecret(passphrase)
	return passphrase, nil
}

// encryptionKey derives the symmetric key that encrypts the settings
// file's api_key field from the cached device passphrase and the
// per-write salt stored alongside the ciphertext, via the same
// PBKDF2-SHA256 scheme the teacher used for its vault's master key.
func encryptionKey(salt []byte) ([]byte, error) {
	passphrase, err := devicePassphrase()
	if err != nil {
		return nil, err
	}
	return crypto.DeriveKeyWithDefaults(passphrase, salt), nil
}
