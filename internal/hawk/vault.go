package hawk

import "io"

// Vault stores encrypted storage snapshots away from the node.
// Snapshots are streamed so large stores are never held in memory twice.
type Vault interface {
	// PutSnapshot stores the snapshot for a node, replacing any previous one.
	// size is the number of bytes that will be read from r.
	// version is stored alongside the snapshot and must grow over time.
	PutSnapshot(nodeID string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the latest snapshot of a node to w.
	GetSnapshot(nodeID string, w io.Writer) error

	// GetSnapshotVersion returns the version of the latest snapshot of a node,
	// or 0 when none has been stored.
	GetSnapshotVersion(nodeID string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup() error
}
