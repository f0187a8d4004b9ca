package encryption

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"hawk-go/internal/hawk"
)

// testHeader marks data sealed by TestEncryptor.
var testHeader = []byte("HAWKENC\x00")

// TestEncryptor is a deterministic encryptor for tests. It prepends a fixed
// header instead of encrypting. Unlock checks the passphrase given to Setup,
// so wrong-passphrase paths can be exercised without key files.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase string
	configured bool
}

var _ hawk.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor returns a TestEncryptor that accepts any passphrase until
// Setup is called.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passphrase = passphrase
	e.configured = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (hawk.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.configured && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ hawk.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
