// Package storage persists everything the kiosk must survive a restart
// with: identities and attendance events in SQLite, and the face sample
// dataset and trained gallery on disk, encrypted at rest with NaCl
// secretbox.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/MrCodeEU/facepunch/pkg/logging"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// Vault reads and writes files, sealing them with secretbox when
// encryption is enabled. Writes go to a temporary file that is renamed
// into place, so readers never see a partial file.
type Vault struct {
	enabled bool
	key     [KeySize]byte
}

// NewVault creates a Vault. With encryption enabled the key is derived
// from machine-specific information, tying the data to this host.
func NewVault(encryptionEnabled bool) (*Vault, error) {
	v := &Vault{enabled: encryptionEnabled}
	if encryptionEnabled {
		key, err := deriveKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		v.key = key
	}
	return v, nil
}

// NewVaultWithKey creates an encrypting Vault with an explicit key.
func NewVaultWithKey(key [KeySize]byte) *Vault {
	return &Vault{enabled: true, key: key}
}

// Encrypted reports whether the vault seals its files.
func (v *Vault) Encrypted() bool {
	return v != nil && v.enabled
}

// Ext returns the file suffix appended to sealed files.
func (v *Vault) Ext() string {
	if v.Encrypted() {
		return ".enc"
	}
	return ""
}

// deriveKey derives an encryption key from machine-specific information.
func deriveKey() ([KeySize]byte, error) {
	var key [KeySize]byte
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("facepunch-v1-salt")

	hash := sha256.Sum256([]byte(identity.String()))
	copy(key[:], hash[:])

	return key, nil
}

// Seal encrypts plaintext when encryption is enabled.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	if !v.Encrypted() {
		return plaintext, nil
	}

	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &v.key), nil
}

// Open decrypts data sealed by Seal.
func (v *Vault) Open(ciphertext []byte) ([]byte, error) {
	if !v.Encrypted() {
		return ciphertext, nil
	}
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &v.key)
	if !ok {
		return nil, ErrEncryption
	}
	return plaintext, nil
}

// WriteFile seals data and atomically replaces path with it.
func (v *Vault) WriteFile(path string, data []byte) error {
	sealed, err := v.Seal(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	logging.Debugf("Wrote %s (%d bytes)", path, len(sealed))
	return nil
}

// ReadFile reads and unseals path.
func (v *Vault) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	plain, err := v.Open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", filepath.Base(path), err)
	}
	return plain, nil
}
