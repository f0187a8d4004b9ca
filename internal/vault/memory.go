package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"hawk-go/internal/hawk"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It keeps one snapshot per node, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name      string
	snapshots map[string][]byte // nodeID -> snapshot
	versions  map[string]int64  // nodeID -> version
	mu        sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		snapshots: make(map[string][]byte),
		versions:  make(map[string]int64),
	}
}

// PutSnapshot stores the snapshot of a node, replacing the previous one.
func (m *MemoryVault) PutSnapshot(nodeID string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshots[nodeID] = data
	m.versions[nodeID] = version
	return nil
}

// GetSnapshot writes the latest snapshot of a node to w.
func (m *MemoryVault) GetSnapshot(nodeID string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.snapshots[nodeID]
	if !ok {
		return fmt.Errorf("snapshot not found for node %s: %w", nodeID, ErrSnapshotNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return nil
}

// GetSnapshotVersion returns the snapshot version of a node.
// Returns 0 if nothing has been stored for this node.
func (m *MemoryVault) GetSnapshotVersion(nodeID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[nodeID], nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements hawk.Vault interface
var _ hawk.Vault = (*MemoryVault)(nil)
