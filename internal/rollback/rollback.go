// Package rollback implements the Rollback Manager (spec.md §4.B):
// checkpoint/restore with bounded retention. A Checkpoint captures every
// path about to be mutated within one increment attempt; rollback_to
// restores all of them atomically from the caller's perspective.
//
// File hashing and the audit-event shape are grounded on the teacher's
// internal/tactile/files.go FileEditor, which computes a SHA-256 over a
// file's content on every read/write for undo and change detection.
package rollback

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"

	aerrors "autodev/internal/errors"
	"autodev/internal/logging"
)

// FileState is a captured snapshot of one file's prior content and mode.
type FileState struct {
	Existed bool
	Content []byte
	Mode    fs.FileMode
	Hash    string
}

// Checkpoint is a snapshot identifier plus a path -> FileState mapping.
type Checkpoint struct {
	ID        string
	CreatedAt time.Time
	Paths     map[string]FileState
}

// Manager owns the checkpoint store rooted at backupDir and enforces
// retention via cleanup_old_checkpoints.
type Manager struct {
	mu         sync.Mutex
	backupDir  string
	checkpoints map[string]*Checkpoint
	order      []string // creation order, oldest first
	retries    int
}

// New constructs a Manager that persists checkpoint manifests under
// backupDir (conventionally .autodev/backups/).
func New(backupDir string) *Manager {
	return &Manager{
		backupDir:   backupDir,
		checkpoints: make(map[string]*Checkpoint),
		retries:     3,
	}
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// CreateCheckpoint records the baseline state of every given path (absent
// files are recorded as !Existed) and returns its id. Implementation
// captures eagerly rather than lazily tracking paths, matching spec.md's
// explicit allowance for either strategy.
func (m *Manager) CreateCheckpoint(id string, paths []string) (*Checkpoint, error) {
	cp := &Checkpoint{
		ID:        id,
		CreatedAt: time.Now(),
		Paths:     make(map[string]FileState, len(paths)),
	}

	for _, p := range paths {
		state, err := captureFileState(p)
		if err != nil {
			return nil, aerrors.Wrapf(aerrors.RollbackFailed, err, "rollback: capture %s", p)
		}
		cp.Paths[p] = state
	}

	if err := m.persist(cp); err != nil {
		return nil, aerrors.Wrapf(aerrors.RollbackFailed, err, "rollback: persist checkpoint %s", id)
	}

	m.mu.Lock()
	m.checkpoints[id] = cp
	m.order = append(m.order, id)
	m.mu.Unlock()

	logging.Get(logging.CategoryRollback).Infow("checkpoint created", "id", id, "paths", len(paths))
	return cp, nil
}

func captureFileState(path string) (FileState, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileState{Existed: false}, nil
		}
		return FileState{}, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return FileState{}, err
	}
	return FileState{
		Existed: true,
		Content: content,
		Mode:    info.Mode(),
		Hash:    hashBytes(content),
	}, nil
}

func (m *Manager) checkpointDir(id string) string {
	return filepath.Join(m.backupDir, id)
}

func (m *Manager) persist(cp *Checkpoint) error {
	dir := m.checkpointDir(cp.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	manifest := make(map[string]struct {
		Existed bool   `json:"existed"`
		Mode    uint32 `json:"mode"`
		Hash    string `json:"hash"`
		Blob    string `json:"blob,omitempty"`
	}, len(cp.Paths))

	for p, st := range cp.Paths {
		blobName := ""
		if st.Existed {
			blobName = hashBytes([]byte(p)) + ".blob"
			if err := os.WriteFile(filepath.Join(dir, blobName), st.Content, 0o644); err != nil {
				return err
			}
		}
		manifest[p] = struct {
			Existed bool   `json:"existed"`
			Mode    uint32 `json:"mode"`
			Hash    string `json:"hash"`
			Blob    string `json:"blob,omitempty"`
		}{Existed: st.Existed, Mode: uint32(st.Mode), Hash: st.Hash, Blob: blobName}
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644)
}

// RollbackTo restores every path captured in checkpoint id to its prior
// state. Per-path failures are retried up to the bound configured on the
// Manager, then joined into a single combined error so no failure is
// silently dropped; if any path remains unrecovered after retries, the
// result is a RollbackFailed error the orchestrator must treat as a
// trigger for emergency-stop.
func (m *Manager) RollbackTo(id string) error {
	m.mu.Lock()
	cp, ok := m.checkpoints[id]
	m.mu.Unlock()
	if !ok {
		return aerrors.New(aerrors.RollbackFailed, fmt.Sprintf("rollback: unknown checkpoint %s", id))
	}

	log := logging.Get(logging.CategoryRollback)

	// Order paths for deterministic restore (not strictly required, but
	// it makes audit logs and tests reproducible).
	paths := make([]string, 0, len(cp.Paths))
	for p := range cp.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var combined error
	for _, p := range paths {
		state := cp.Paths[p]
		var lastErr error
		for attempt := 0; attempt <= m.retries; attempt++ {
			if err := restoreFile(p, state); err != nil {
				lastErr = err
				continue
			}
			lastErr = nil
			break
		}
		if lastErr != nil {
			log.Errorw("rollback failed for path after retries", "path", p, "error", lastErr)
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", p, lastErr))
		}
	}

	if combined != nil {
		return aerrors.Wrap(aerrors.RollbackFailed, "rollback: one or more paths could not be restored", combined)
	}

	log.Infow("checkpoint restored", "id", id, "paths", len(paths))
	return nil
}

func restoreFile(path string, state FileState) error {
	if !state.Existed {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, state.Content, state.Mode); err != nil {
		return err
	}
	return os.Chmod(path, state.Mode.Perm())
}

// CleanupOldCheckpoints prunes checkpoints beyond keepCount, oldest first.
func (m *Manager) CleanupOldCheckpoints(keepCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if keepCount < 0 {
		keepCount = 0
	}
	if len(m.order) <= keepCount {
		return nil
	}

	toRemove := m.order[:len(m.order)-keepCount]
	m.order = m.order[len(m.order)-keepCount:]

	var combined error
	for _, id := range toRemove {
		delete(m.checkpoints, id)
		if err := os.RemoveAll(m.checkpointDir(id)); err != nil {
			combined = multierr.Append(combined, err)
		}
	}
	if combined != nil {
		return fmt.Errorf("rollback: cleanup: %w", combined)
	}
	return nil
}

// Checkpoint returns a previously created checkpoint by id, if still held.
func (m *Manager) Checkpoint(id string) (*Checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[id]
	return cp, ok
}

// OutstandingCheckpoints returns every checkpoint id the Manager still
// holds, oldest first — used by emergency-stop to roll back all of them.
func (m *Manager) OutstandingCheckpoints() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
