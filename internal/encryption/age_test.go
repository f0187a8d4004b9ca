package encryption

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hawk-go/internal/config"
)

func newTestAgeEncryptor(t *testing.T) *AgeEncryptor {
	t.Helper()
	dir := t.TempDir()
	cfg := config.EncryptionConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "hawk.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "hawk.key"),
	}
	return NewAgeEncryptor(cfg)
}

func TestAgeEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := newTestAgeEncryptor(t)
	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}

	if err := e.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}

	info, err := os.Stat(e.privateKeyPath)
	if err != nil {
		t.Fatalf("private key not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("private key mode = %o, want 600", perm)
	}
	pub, err := os.ReadFile(e.publicKeyPath)
	if err != nil {
		t.Fatalf("public key not written: %v", err)
	}
	if !bytes.HasPrefix(pub, []byte("age1")) {
		t.Errorf("public key = %q, want an age1 recipient", pub)
	}

	if err := e.Setup("other"); !errors.Is(err, ErrAlreadyConfigured) {
		t.Errorf("second Setup() error = %v, want %v", err, ErrAlreadyConfigured)
	}
	if err := newTestAgeEncryptor(t).Setup(""); err == nil {
		t.Error("Setup(\"\") expected error")
	}
}

func TestAgeEncryptor_EncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	passphrase := "test-passphrase"
	e := newTestAgeEncryptor(t)
	if err := e.Setup(passphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "json document", input: []byte(`{"VERSION":"0.0.0.1","USERS":[]}`)},
		{name: "empty", input: []byte{}},
		{name: "sqlite header", input: []byte("SQLite format 3\x00")},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(tt.input) > 0 && bytes.Contains(encrypted.Bytes(), tt.input) {
				t.Error("encrypted output contains the plaintext")
			}

			ctx, err := e.Unlock(passphrase)
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var decrypted bytes.Buffer
			if err := ctx.Decrypt(bytes.NewReader(encrypted.Bytes()), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %d bytes, want %d bytes", decrypted.Len(), len(tt.input))
			}
		})
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	if err := e.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("wrong-passphrase"); !errors.Is(err, ErrWrongPassphrase) {
		t.Errorf("Unlock(wrong) error = %v, want %v", err, ErrWrongPassphrase)
	}
}

func TestAgeEncryptor_NotConfigured(t *testing.T) {
	t.Parallel()

	e := newTestAgeEncryptor(t)
	var buf bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("data")), &buf); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Encrypt() before Setup error = %v, want %v", err, ErrNotConfigured)
	}
	if _, err := e.Unlock("passphrase"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Unlock() before Setup error = %v, want %v", err, ErrNotConfigured)
	}
}

func TestAgeDecryptionContext_OtherKey(t *testing.T) {
	t.Parallel()

	a, b := newTestAgeEncryptor(t), newTestAgeEncryptor(t)
	for _, e := range []*AgeEncryptor{a, b} {
		if err := e.Setup("pw"); err != nil {
			t.Fatalf("Setup() error = %v", err)
		}
	}
	var encrypted bytes.Buffer
	if err := a.Encrypt(bytes.NewReader([]byte("secret")), &encrypted); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	ctx, err := b.Unlock("pw")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if err := ctx.Decrypt(&encrypted, &bytes.Buffer{}); err == nil {
		t.Error("Decrypt() with another key pair should return error")
	}
}
