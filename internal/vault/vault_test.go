package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"hawk-go/internal/hawk"
)

// testVault checks the behaviour shared by every hawk.Vault.
func testVault(t *testing.T, v hawk.Vault) {
	t.Helper()

	t.Run("empty vault", func(t *testing.T) {
		version, err := v.GetSnapshotVersion("node-a")
		if err != nil {
			t.Fatalf("GetSnapshotVersion() error = %v", err)
		}
		if version != 0 {
			t.Errorf("GetSnapshotVersion() = %d, want 0", version)
		}

		var buf bytes.Buffer
		if err := v.GetSnapshot("node-a", &buf); !errors.Is(err, ErrSnapshotNotFound) {
			t.Errorf("GetSnapshot() error = %v, want %v", err, ErrSnapshotNotFound)
		}
	})

	t.Run("put and get", func(t *testing.T) {
		data := strings.Repeat("snapshot ", 1000)
		if err := v.PutSnapshot("node-a", strings.NewReader(data), int64(len(data)), 100); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetSnapshot("node-a", &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetSnapshot() returned %d bytes, want %d", buf.Len(), len(data))
		}
		version, err := v.GetSnapshotVersion("node-a")
		if err != nil {
			t.Fatalf("GetSnapshotVersion() error = %v", err)
		}
		if version != 100 {
			t.Errorf("GetSnapshotVersion() = %d, want 100", version)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		data := "second"
		if err := v.PutSnapshot("node-a", strings.NewReader(data), int64(len(data)), 200); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}
		var buf bytes.Buffer
		if err := v.GetSnapshot("node-a", &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if buf.String() != data {
			t.Errorf("GetSnapshot() = %q, want %q", buf.String(), data)
		}
		if version, _ := v.GetSnapshotVersion("node-a"); version != 200 {
			t.Errorf("GetSnapshotVersion() = %d, want 200", version)
		}
	})

	t.Run("nodes are separate", func(t *testing.T) {
		if version, _ := v.GetSnapshotVersion("node-b"); version != 0 {
			t.Errorf("GetSnapshotVersion(node-b) = %d, want 0", version)
		}
	})

	t.Run("empty snapshot", func(t *testing.T) {
		if err := v.PutSnapshot("node-c", strings.NewReader(""), 0, 1); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}
		var buf bytes.Buffer
		if err := v.GetSnapshot("node-c", &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("GetSnapshot() = %q, want empty", buf.String())
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		if err := v.PutSnapshot("node-d", strings.NewReader("short"), 100, 1); err == nil {
			t.Error("PutSnapshot() expected error for size mismatch")
		}
	})

	t.Run("validate", func(t *testing.T) {
		if err := v.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}
