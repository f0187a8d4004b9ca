package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hawk-go/internal/config"
	"hawk-go/internal/encryption"
	"hawk-go/internal/hawk"
	"hawk-go/internal/storage"
	"hawk-go/internal/storage/cache"
	"hawk-go/internal/storage/sqlitestore"
	"hawk-go/internal/vault"
)

// HawkApp is the application layer between the CLI and ChatService.
// It constructs all dependencies from config, owns the storage lifecycle
// and moves encrypted snapshots between the storage and the vault.
type HawkApp struct {
	cfg       *config.Config
	storage   *storage.Combined
	vault     hawk.Vault
	encryptor hawk.Encryptor
	service   *hawk.ChatService
	clock     hawk.Clock
	logger    hawk.Logger
	op        *Operation
	logFile   *os.File
}

// NewHawkApp creates a fully wired HawkApp from the given config and opens
// its storage. command and args identify the CLI command being run.
// The caller must call Close when done.
func NewHawkApp(cfg *config.Config, command string, args []string) (*HawkApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clock := hawk.RealClock{}
	op := NewOperation(command, args, clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, cfg.LogLevel, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a, err := newHawkApp(cfg, op, &slogAdapter{l: logger}, clock, hawk.UUIDGenerator{})
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

func newHawkApp(cfg *config.Config, op *Operation, logger hawk.Logger, clock hawk.Clock, idgen hawk.IDGenerator) (*HawkApp, error) {
	v, err := vault.NewVaultFromConfig(cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	st, err := storage.NewStorageFromConfig(cfg, logger, clock, idgen)
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}
	if err := st.Open(); err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	logger.Debug("operation started", "command", op.String(), "storage", cfg.Storage.Type, "cache", cfg.Cache.Enabled)

	return &HawkApp{
		cfg:       cfg,
		storage:   st,
		vault:     v,
		encryptor: enc,
		service:   hawk.NewChatService(st, logger, clock, idgen),
		clock:     clock,
		logger:    logger,
		op:        op,
	}, nil
}

// Service returns the chat service backed by the app storage.
func (a *HawkApp) Service() *hawk.ChatService { return a.service }

// Operation returns the operation this app was created for.
func (a *HawkApp) Operation() *Operation { return a.op }

// CacheStats reports the cache occupancy. ok is false when the cache is
// disabled.
func (a *HawkApp) CacheStats() (stats cache.Stats, ok bool) {
	c, ok := a.storage.Cache().(*cache.Store)
	if !ok {
		return cache.Stats{}, false
	}
	return c.Stats(), true
}

// Backup snapshots the storage, encrypts the snapshot and uploads it to the
// vault. The version is the current time in milliseconds, bumped past the
// version already in the vault if the clock went backwards.
func (a *HawkApp) Backup() (int64, error) {
	if !a.encryptor.IsConfigured() {
		return 0, fmt.Errorf("encryption keys not configured: run 'hawk config init'")
	}

	plain, err := os.CreateTemp("", "hawk-snapshot-*")
	if err != nil {
		return 0, fmt.Errorf("creating snapshot file: %w", err)
	}
	defer os.Remove(plain.Name())
	defer plain.Close()

	if err := a.storage.WriteSnapshot(plain); err != nil {
		return 0, fmt.Errorf("writing snapshot: %w", err)
	}
	if _, err := plain.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewinding snapshot: %w", err)
	}

	sealed, err := os.CreateTemp("", "hawk-sealed-*")
	if err != nil {
		return 0, fmt.Errorf("creating encrypted snapshot file: %w", err)
	}
	defer os.Remove(sealed.Name())
	defer sealed.Close()

	if err := a.encryptor.Encrypt(plain, sealed); err != nil {
		return 0, fmt.Errorf("encrypting snapshot: %w", err)
	}
	size, err := sealed.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("sizing encrypted snapshot: %w", err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewinding encrypted snapshot: %w", err)
	}

	remote, err := a.vault.GetSnapshotVersion(a.cfg.NodeID)
	if err != nil {
		return 0, fmt.Errorf("checking remote snapshot version: %w", err)
	}
	version := a.clock.Now().UnixMilli()
	if version <= remote {
		version = remote + 1
	}

	if err := a.vault.PutSnapshot(a.cfg.NodeID, sealed, size, version); err != nil {
		return 0, fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	a.logger.Info("snapshot uploaded", "node", a.cfg.NodeID, "version", version, "bytes", size)
	return version, nil
}

// Restore replaces the storage with the latest snapshot in the vault. The
// storage is closed while its backing file is swapped and reopened
// afterwards, also when the swap fails.
func (a *HawkApp) Restore(passphrase string) (int64, error) {
	path := a.storage.Path()
	if path == "" || path == sqlitestore.MemoryPath {
		return 0, fmt.Errorf("storage %q has no file to restore into", path)
	}

	version, err := a.vault.GetSnapshotVersion(a.cfg.NodeID)
	if err != nil {
		return 0, fmt.Errorf("checking remote snapshot version: %w", err)
	}
	if version == 0 {
		return 0, fmt.Errorf("no snapshot for node %s in vault", a.cfg.NodeID)
	}

	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking private key: %w", err)
	}

	sealed, err := os.CreateTemp("", "hawk-sealed-*")
	if err != nil {
		return 0, fmt.Errorf("creating download file: %w", err)
	}
	defer os.Remove(sealed.Name())
	defer sealed.Close()

	if err := a.vault.GetSnapshot(a.cfg.NodeID, sealed); err != nil {
		return 0, fmt.Errorf("downloading snapshot: %w", err)
	}
	if _, err := sealed.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewinding snapshot: %w", err)
	}

	// Decrypt next to the target so the final rename stays on one filesystem.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("creating storage directory: %w", err)
	}
	plain, err := os.CreateTemp(dir, ".restore-*")
	if err != nil {
		return 0, fmt.Errorf("creating restore file: %w", err)
	}
	defer os.Remove(plain.Name())

	if err := dec.Decrypt(sealed, plain); err != nil {
		plain.Close()
		return 0, fmt.Errorf("decrypting snapshot: %w", err)
	}
	if err := plain.Close(); err != nil {
		return 0, fmt.Errorf("closing restore file: %w", err)
	}

	a.storage.Close()
	var errs []error
	if err := os.Rename(plain.Name(), path); err != nil {
		errs = append(errs, fmt.Errorf("replacing storage file: %w", err))
	}
	if err := a.storage.Open(); err != nil {
		errs = append(errs, fmt.Errorf("reopening storage: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return 0, err
	}

	a.logger.Info("snapshot restored", "node", a.cfg.NodeID, "version", version, "path", path)
	return version, nil
}

// Close closes the storage and the log file.
func (a *HawkApp) Close() error {
	var firstErr error

	a.storage.Close()
	a.logger.Debug("operation finished", "command", a.op.String(), "status", a.op.Status)

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
