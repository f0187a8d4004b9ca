// Package vault holds encrypted storage snapshots away from the node.
package vault

import "errors"

// ErrSnapshotNotFound is returned by GetSnapshot when no snapshot has been
// stored for the node.
var ErrSnapshotNotFound = errors.New("snapshot not found")
