package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testKey() [KeySize]byte {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestNewVault(t *testing.T) {
	tests := []struct {
		name       string
		encryption bool
		wantExt    string
	}{
		{name: "without encryption", encryption: false, wantExt: ""},
		{name: "with encryption", encryption: true, wantExt: ".enc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewVault(tt.encryption)
			if err != nil {
				t.Fatalf("NewVault() error = %v", err)
			}
			if v.Encrypted() != tt.encryption {
				t.Errorf("Encrypted() = %v, want %v", v.Encrypted(), tt.encryption)
			}
			if v.Ext() != tt.wantExt {
				t.Errorf("Ext() = %q, want %q", v.Ext(), tt.wantExt)
			}
		})
	}
}

func TestVault_SealOpen(t *testing.T) {
	v := NewVaultWithKey(testKey())
	plain := []byte(`{"label":7}`)

	sealed, err := v.Seal(plain)
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed data should not contain the plaintext")
	}

	opened, err := v.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Errorf("got %q, want %q", opened, plain)
	}

	again, _ := v.Seal(plain)
	if bytes.Equal(again, sealed) {
		t.Error("each seal should use a fresh nonce")
	}
}

func TestVault_OpenRejectsTampering(t *testing.T) {
	v := NewVaultWithKey(testKey())
	sealed, _ := v.Seal([]byte("secret"))

	sealed[len(sealed)-1] ^= 0xff
	if _, err := v.Open(sealed); !errors.Is(err, ErrEncryption) {
		t.Errorf("expected ErrEncryption for tampered data, got %v", err)
	}
	if _, err := v.Open([]byte("short")); !errors.Is(err, ErrEncryption) {
		t.Errorf("expected ErrEncryption for short data, got %v", err)
	}

	var other [KeySize]byte
	good, _ := v.Seal([]byte("secret"))
	if _, err := NewVaultWithKey(other).Open(good); !errors.Is(err, ErrEncryption) {
		t.Errorf("expected ErrEncryption for wrong key, got %v", err)
	}
}

func TestVault_PlainPassThrough(t *testing.T) {
	v, _ := NewVault(false)
	data := []byte("plain")

	sealed, err := v.Seal(data)
	if err != nil || !bytes.Equal(sealed, data) {
		t.Errorf("plain vault should not transform data, got %q, %v", sealed, err)
	}
}

func TestVault_WriteReadFile(t *testing.T) {
	tmpDir := t.TempDir()
	v := NewVaultWithKey(testKey())
	path := filepath.Join(tmpDir, "nested", "gallery.bin")

	if err := v.WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := v.WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("WriteFile (replace) failed: %v", err)
	}

	got, err := v.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files should not be left behind, found %d entries", len(entries))
	}
}

func TestVault_ReadFile_NotFound(t *testing.T) {
	v := NewVaultWithKey(testKey())
	_, err := v.ReadFile(filepath.Join(t.TempDir(), "missing"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}
