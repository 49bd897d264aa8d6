package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"safefs/internal/fs"
	"safefs/internal/logging"

	"golang.org/x/sys/unix"
)

var (
	logger = logging.GetLogger().WithPrefix("state")

	// ErrSourceBusy is returned by Acquire when another process holds the
	// state lock.
	ErrSourceBusy = errors.New("state is locked by another mount")
)

const (
	// DefaultBackupCount is the number of backups kept when none is configured.
	DefaultBackupCount = 5

	backupPrefix    = "state-"
	backupSuffix    = ".json"
	backupTimestamp = "20060102-150405.000000000"
)

// Manager handles loading and saving session state. The state file is
// replaced atomically on every save, so the lock guarding it lives in a
// separate file next to it.
type Manager struct {
	statePath   fs.Path
	lockPath    fs.Path
	backupDir   fs.Path
	backupCount int
	lockFile    *fs.File
	mu          sync.Mutex
}

// NewManager creates a new state manager for the given state file path.
// It ensures the state and backup directories exist. A negative backupCount
// selects DefaultBackupCount.
func NewManager(statePath string, backupCount int) (*Manager, error) {
	logger.Debug("Creating new state manager with path: %s", statePath)

	absPath, err := filepath.Abs(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state path %s: %w", statePath, err)
	}
	logger.Debug("Resolved state path: %s", absPath)

	path := fs.NewPath(absPath)
	stateDir := path.Parent()
	logger.Debug("Ensuring state directory exists: %s", stateDir)
	if err := fs.Mkdirs(stateDir); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	backupDir := stateDir.Append(".safefs-backups")
	logger.Debug("Creating backup directory: %s", backupDir)
	if err := fs.Mkdirs(backupDir); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, err)
	}

	if backupCount < 0 {
		backupCount = DefaultBackupCount
	}

	logger.Info("State manager initialization complete")
	return &Manager{
		statePath:   path,
		lockPath:    fs.NewPath(absPath + ".lock"),
		backupDir:   backupDir,
		backupCount: backupCount,
	}, nil
}

// Path returns the absolute path of the state file.
func (sm *Manager) Path() fs.Path {
	return sm.statePath
}

// Acquire takes an exclusive, non-blocking lock on the state. It fails with
// ErrSourceBusy while another open lock file description holds it, whether
// in another process or in this one.
func (sm *Manager) Acquire() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.lockFile != nil {
		return nil
	}

	lf := fs.NewFile(sm.lockPath)
	if err := lf.Open(fs.OpenReadWrite|fs.OpenCreate, 0o644); err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	ok, err := lf.Lock(fs.LockExclusive, fs.Abs(0, 0), false)
	if err != nil {
		lf.Close()
		return fmt.Errorf("failed to lock state: %w", err)
	}
	if !ok {
		lf.Close()
		logger.Warn("State %s is held by another mount", sm.statePath)
		return ErrSourceBusy
	}

	logger.Debug("Acquired state lock %s", sm.lockPath)
	sm.lockFile = lf
	return nil
}

// Release drops the lock taken by Acquire. Releasing an unheld lock is a
// no-op.
func (sm *Manager) Release() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.lockFile == nil {
		return nil
	}

	lf := sm.lockFile
	sm.lockFile = nil
	if err := lf.Unlock(fs.Abs(0, 0)); err != nil {
		lf.Close()
		return fmt.Errorf("failed to unlock state: %w", err)
	}
	logger.Debug("Released state lock %s", sm.lockPath)
	return lf.Close()
}

// LoadState loads the session state from disk.
// If no state file exists, or it is empty, a new one is written.
func (sm *Manager) LoadState() (*Session, error) {
	logger.Debug("Loading state from: %s", sm.statePath)
	sm.mu.Lock()
	defer sm.mu.Unlock()

	meta, err := fs.Stat(sm.statePath)
	if err != nil {
		if errno, ok := fs.Errno(err); !ok || errno != unix.ENOENT {
			return nil, fmt.Errorf("failed to check state file: %w", err)
		}
	}

	if meta == nil || meta.Size == 0 {
		logger.Info("No valid state file, creating new state")
		session := &Session{Version: CurrentVersion}
		if err := sm.write(session); err != nil {
			return nil, fmt.Errorf("failed to write initial state: %w", err)
		}
		logger.Info("Created new state file successfully")
		return session, nil
	}

	data, err := readFile(sm.statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	logger.Debug("Parsing existing state file (%d bytes)", len(data))
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if session.Version > CurrentVersion {
		return nil, fmt.Errorf("state file version %d is newer than supported version %d",
			session.Version, CurrentVersion)
	}

	logger.Info("State loaded successfully")
	return &session, nil
}

// SaveState saves the session state to disk, replacing the previous file
// atomically. It creates a backup of the previous state first.
func (sm *Manager) SaveState(session *Session) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	logger.Debug("Saving state to: %s", sm.statePath)

	if err := sm.createBackup(); err != nil {
		logger.Warn("Failed to create backup: %v", err)
	}

	return sm.write(session)
}

func (sm *Manager) write(session *Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	logger.Trace("Writing %d bytes of state data", len(data))
	if err := writeFileAtomic(sm.statePath, data); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	meta, err := fs.Stat(sm.statePath)
	if err != nil {
		return fmt.Errorf("failed to verify written state: %w", err)
	}
	if meta.Size != int64(len(data)) {
		return fmt.Errorf("state file has %d bytes after writing %d", meta.Size, len(data))
	}

	logger.Debug("State saved and verified successfully")
	return nil
}

// createBackup copies the current state file into the backup directory.
func (sm *Manager) createBackup() error {
	if !sm.statePath.Exists() {
		return nil
	}

	data, err := readFile(sm.statePath)
	if err != nil {
		return err
	}

	name := backupPrefix + time.Now().UTC().Format(backupTimestamp) + backupSuffix
	backupPath := sm.backupDir.Append(name)

	logger.Debug("Creating backup: %s", backupPath)
	if err := writeFileAtomic(backupPath, data); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	return sm.cleanupOldBackups()
}

// Backups returns the backup files, oldest first.
func (sm *Manager) Backups() ([]fs.Path, error) {
	backups, err := fs.List(sm.backupDir.Append(backupPrefix + "*" + backupSuffix))
	if err != nil {
		return nil, err
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].String() < backups[j].String()
	})
	return backups, nil
}

// cleanupOldBackups removes old backup files, keeping only the most recent ones.
func (sm *Manager) cleanupOldBackups() error {
	backups, err := sm.Backups()
	if err != nil {
		return err
	}

	for i := 0; i < len(backups)-sm.backupCount; i++ {
		logger.Debug("Removing old backup: %s", backups[i])
		if err := fs.Remove(backups[i]); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i], err)
		}
	}
	return nil
}

func readFile(path fs.Path) ([]byte, error) {
	f := fs.NewFile(path)
	defer f.Close()
	if err := f.Open(fs.OpenReadOnly, 0); err != nil {
		return nil, err
	}
	return io.ReadAll(f.Reader())
}

// writeFileAtomic writes data to a fresh file next to target, syncs it,
// renames it over target and syncs the directory.
func writeFileAtomic(target fs.Path, data []byte) error {
	tmp := fs.UniqueFile(target.Parent(), ".tmp-"+target.Base()+"-")
	if err := tmp.Open(fs.OpenWriteOnly|fs.OpenCreate|fs.OpenExclusive, 0o600); err != nil {
		return err
	}

	err := tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if err == nil {
		err = tmp.Rename(target)
	}
	if err != nil {
		if rmErr := tmp.Remove(); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("Failed to remove temporary file %s: %v", tmp.Path(), rmErr)
		}
		return err
	}

	// The rename is durable only once the directory entry is.
	dir := fs.NewFile(target.Parent())
	defer dir.Close()
	if err := dir.Open(fs.OpenReadOnly, 0); err != nil {
		return err
	}
	return dir.Sync()
}
