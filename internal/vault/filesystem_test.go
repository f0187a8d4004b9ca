package vault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileSystemVault(t *testing.T) {
	t.Run("creates directory structure", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")

		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, "snapshots")); err != nil {
			t.Errorf("snapshots directory not created: %v", err)
		}
		if v.name != "test" {
			t.Errorf("name = %q, want %q", v.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemVault("test", t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
	})
}

func TestFileSystemVault(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	testVault(t, v)
}

func TestFileSystemVault_Layout(t *testing.T) {
	root := t.TempDir()
	v, err := NewFileSystemVault("test", root)
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	data := "encrypted"
	if err := v.PutSnapshot("node-1", strings.NewReader(data), int64(len(data)), 42); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "snapshots", "node-1.snap"))
	if err != nil || string(got) != data {
		t.Errorf("snapshot file = %q, %v; want %q", got, err, data)
	}
	version, err := os.ReadFile(filepath.Join(root, "snapshots", "node-1.version"))
	if err != nil || string(version) != "42" {
		t.Errorf("version file = %q, %v; want %q", version, err, "42")
	}

	// Verify no temp files are left after a failed write
	if err := v.PutSnapshot("node-1", strings.NewReader("x"), 5, 43); err == nil {
		t.Fatal("PutSnapshot() expected error for size mismatch")
	}
	entries, err := os.ReadDir(v.snapshotsDir)
	if err != nil {
		t.Fatalf("failed to read snapshots dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
	if got, _ := v.GetSnapshotVersion("node-1"); got != 42 {
		t.Errorf("GetSnapshotVersion() after failed put = %d, want 42", got)
	}
}

func TestFileSystemVault_CorruptVersion(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}
	if err := os.WriteFile(v.versionPath("node"), []byte("latest"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := v.GetSnapshotVersion("node"); err == nil {
		t.Error("GetSnapshotVersion() expected error for corrupt version file")
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	v := &FileSystemVault{
		name:         "test",
		root:         "/nonexistent/path",
		snapshotsDir: "/nonexistent/path/snapshots",
	}
	if err := v.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for missing root")
	}
}
