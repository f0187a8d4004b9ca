// Package jsonstore is the physical storage backed by a single JSON
// document on disk. The document is loaded on Open, mutated in memory and
// written back on Close.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"sync"

	"hawk-go/internal/hawk"
)

// Store implements hawk.Storage over a JSON document. A single mutex
// serializes all public calls; unexported helpers expect it to be held.
type Store struct {
	mu     sync.Mutex
	path   string
	logger hawk.Logger
	clock  hawk.Clock
	idgen  hawk.IDGenerator
	doc    *document
}

var (
	_ hawk.Storage     = (*Store)(nil)
	_ hawk.Snapshotter = (*Store)(nil)
)

// New creates a closed Store for the document at path. clock and idgen are
// used only to bootstrap the administrator of a new document.
func New(path string, logger hawk.Logger, clock hawk.Clock, idgen hawk.IDGenerator) *Store {
	return &Store{
		path:   path,
		logger: hawk.LoggerOrNop(logger),
		clock:  clock,
		idgen:  idgen,
	}
}

// Path returns the document location.
func (s *Store) Path() string { return s.path }

// Open loads the document, creating a default one when the file is missing.
// A document that fails structural validation is discarded and the error
// returned.
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s.bootstrapLocked()
	case err != nil:
		return fmt.Errorf("opening %s: %w: %w", s.path, hawk.ErrOpenFileFail, err)
	case info.IsDir():
		return fmt.Errorf("opening %s: %w", s.path, hawk.ErrObjectNotFile)
	}

	doc, err := readDocument(s.path)
	if err != nil {
		return err
	}
	if doc.Version != FormatVersion {
		s.logger.Warn("document format version differs", "path", s.path, "version", doc.Version, "expected", FormatVersion)
	}
	s.doc = doc
	s.logger.Info("json storage opened", "path", s.path, "users", len(doc.Users), "groups", len(doc.Groups), "messages", len(doc.Messages))
	return nil
}

func (s *Store) bootstrapLocked() error {
	admin := hawk.NewAdminUser(s.idgen.New(), hawk.StorageTime(s.clock))
	doc, err := newDefaultDocument(admin)
	if err != nil {
		return fmt.Errorf("creating default document: %w", err)
	}
	if err := writeDocument(s.path, doc); err != nil {
		return fmt.Errorf("creating %s: %w", s.path, err)
	}
	s.doc = doc
	s.logger.Info("json storage created", "path", s.path, "admin", admin.UUID)
	return nil
}

// IsOpen reports whether a document is loaded.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc != nil
}

// Close writes the document to disk and unloads it. A write failure is
// logged; the document is unloaded regardless.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Store) closeLocked() {
	if s.doc == nil {
		return
	}
	if err := writeDocument(s.path, s.doc); err != nil {
		s.logger.Error("failed to write document on close", "path", s.path, "error", err)
	}
	s.doc = nil
}

// Flush writes the document to disk without closing the store.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return hawk.ErrNotOpen
	}
	return writeDocument(s.path, s.doc)
}

// WriteSnapshot writes the current document to w.
func (s *Store) WriteSnapshot(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return hawk.ErrNotOpen
	}
	data, err := marshalDocument(s.doc)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func (s *Store) requireOpen() error {
	if s.doc == nil {
		return hawk.ErrNotOpen
	}
	return nil
}

// scan materializes records one by one until match accepts one. Records that
// fail validation are logged and skipped.
func scan[T any](s *Store, kind string, records []json.RawMessage, decode func(json.RawMessage) (T, error), match func(T) bool) (int, T, bool) {
	var zero T
	for i, raw := range records {
		v, err := decode(raw)
		if err != nil {
			s.logger.Warn("skipping corrupted record", "kind", kind, "index", i, "error", err)
			continue
		}
		if match(v) {
			return i, v, true
		}
	}
	return -1, zero, false
}

// removeAt returns records without the element at i.
func removeAt(records []json.RawMessage, i int) []json.RawMessage {
	return slices.Delete(records, i, i+1)
}
