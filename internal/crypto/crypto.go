// Package crypto provides the symmetric-encryption primitives used to
// cache a control-plane credential at rest: PBKDF2 key derivation and
// AES-256-GCM encrypt/decrypt, plus the small set of encoding helpers
// callers need to persist the result as text.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltLength       = 16     // 128-bit salt
	KeyLength        = 32     // AES-256
	NonceLength      = 12     // GCM nonce
	PBKDF2Iterations = 310000 // OWASP 2025 recommendation
)

// GenerateRandomBytes generates cryptographically secure random bytes.
func GenerateRandomBytes(length int) ([]byte, error) {
	bytes := make([]byte, length)
	_, err := rand.Read(bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return bytes, nil
}

// GenerateSalt generates a 16-byte (128-bit) salt.
func GenerateSalt() ([]byte, error) {
	return GenerateRandomBytes(SaltLength)
}

// GenerateNonce generates a 12-byte nonce for AES-GCM.
func GenerateNonce() ([]byte, error) {
	return GenerateRandomBytes(NonceLength)
}

// DeriveKey derives a 256-bit key from a passphrase using PBKDF2-SHA256.
func DeriveKey(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeyLength, sha256.New)
}

// DeriveKeyWithDefaults derives a key using the default PBKDF2 iteration count.
func DeriveKeyWithDefaults(passphrase string, salt []byte) []byte {
	return DeriveKey(passphrase, salt, PBKDF2Iterations)
}

// Encrypt encrypts plaintext using AES-256-GCM, returning ciphertext and nonce.
func Encrypt(plaintext string, key []byte) (ciphertext, nonce []byte, err error) {
	if len(key) != KeyLength {
		return nil, nil, fmt.Errorf("invalid key length: expected %d, got %d", KeyLength, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce, err = GenerateNonce()
	if err != nil {
		return nil, nil, err
	}

	ciphertext = gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM.
func Decrypt(ciphertext, nonce, key []byte) (string, error) {
	if len(key) != KeyLength {
		return "", fmt.Errorf("invalid key length: expected %d, got %d", KeyLength, len(key))
	}
	if len(nonce) != NonceLength {
		return "", fmt.Errorf("invalid nonce length: expected %d, got %d", NonceLength, len(nonce))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}
	return string(plaintext), nil
}

// EncryptToBase64 encrypts plaintext and returns base64-encoded ciphertext and nonce.
func EncryptToBase64(plaintext string, key []byte) (ciphertextB64, nonceB64 string, err error) {
	ciphertext, nonce, err := Encrypt(plaintext, key)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(nonce), nil
}

// DecryptFromBase64 decrypts base64-encoded ciphertext.
func DecryptFromBase64(ciphertextB64, nonceB64 string, key []byte) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode nonce: %w", err)
	}
	return Decrypt(ciphertext, nonce, key)
}

// BytesToBase64 converts bytes to a base64 string.
func BytesToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Base64ToBytes converts a base64 string to bytes.
func Base64ToBytes(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
