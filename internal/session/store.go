package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hostops/credbroker/internal/logging"
)

// FileStore persists sessions under an explicit base directory, one JSON
// record per issued session. The directory is created 0700 and records
// 0600; sessions embed plaintext credentials, so the location must never
// be a shared temp path.
//
// Writers for the same server serialize on a per-server lock: an
// in-process mutex orders goroutines, and an exclusive flock on a lock
// file inside the server directory orders independent broker processes
// sharing the directory. A revoke and a save for the same server
// therefore order deterministically by lock acquisition, and a completed
// invalidation can never be overwritten by an in-flight save of a stale
// record. Records land via temp file + rename, so readers never observe
// a partially written record. Writers for different servers do not
// contend.
type FileStore struct {
	baseDir string
	logger  *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a session store rooted at baseDir.
func NewFileStore(baseDir string, logger *logging.Logger) *FileStore {
	return &FileStore{
		baseDir: baseDir,
		logger:  logger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// DefaultBaseDir returns the session directory used when the config does
// not name one: a user-private data directory, never a world-readable
// temp path.
func DefaultBaseDir() string {
	if dir := os.Getenv("CREDBROKER_SESSION_DIR"); dir != "" {
		return dir
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "credbroker", "sessions")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "credbroker", "sessions")
	}
	return filepath.Join(os.TempDir(), "credbroker", "sessions")
}

// serverLock returns the mutex serializing same-process writers for one
// server.
func (fs *FileStore) serverLock(serverName string) *sync.Mutex {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	lock, ok := fs.locks[serverName]
	if !ok {
		lock = &sync.Mutex{}
		fs.locks[serverName] = lock
	}
	return lock
}

// lockFileName is the flock target inside each server directory.
const lockFileName = ".lock"

// lockServer acquires the per-server write lock: the in-process mutex
// first, then an exclusive flock on the server directory's lock file so
// writers in other broker processes serialize too. The returned release
// func must be called on every exit path.
func (fs *FileStore) lockServer(serverName string) (func(), error) {
	mu := fs.serverLock(serverName)
	mu.Lock()

	dir := fs.serverDir(serverName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		mu.Unlock()
		return nil, PersistenceError{Op: "lock", Path: dir, Err: err}
	}
	f, err := os.OpenFile(filepath.Join(dir, lockFileName), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		mu.Unlock()
		return nil, PersistenceError{Op: "lock", Path: dir, Err: err}
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		mu.Unlock()
		return nil, PersistenceError{Op: "lock", Path: dir, Err: err}
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		mu.Unlock()
	}, nil
}

func (fs *FileStore) serverDir(serverName string) string {
	return filepath.Join(fs.baseDir, sanitizeFilename(serverName))
}

// recordName orders records chronologically when sorted lexicographically.
func recordName(s Session) string {
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%020d-%s.json", s.IssuedAt.UnixNano(), id)
}

// Save persists a session record. The per-server lock is held for the
// duration of the write.
func (fs *FileStore) Save(s Session) error {
	if s.ServerName == "" {
		return PersistenceError{Op: "save", Path: fs.baseDir, Err: fmt.Errorf("session has no server name")}
	}
	if s.Status == "" {
		s.Status = StatusActive
	}

	unlock, err := fs.lockServer(s.ServerName)
	if err != nil {
		return err
	}
	defer unlock()

	return fs.write(s)
}

// write persists a record without taking the per-server lock. Callers
// must hold it. The record is staged in a temp file and renamed into
// place, so a concurrent reader sees either the whole record or none of
// it.
func (fs *FileStore) write(s Session) error {
	dir := fs.serverDir(s.ServerName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return PersistenceError{Op: "save", Path: dir, Err: err}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return PersistenceError{Op: "save", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return PersistenceError{Op: "save", Path: dir, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return PersistenceError{Op: "save", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return PersistenceError{Op: "save", Path: tmp.Name(), Err: err}
	}

	path := filepath.Join(dir, recordName(s))
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return PersistenceError{Op: "save", Path: path, Err: err}
	}
	return nil
}

// FindLatest returns the most recently issued active session for a
// server. Expired or revoked records do not count; if none are active the
// result is NotFoundError and the caller re-issues.
func (fs *FileStore) FindLatest(serverName string) (Session, error) {
	sessions, err := fs.readServer(serverName)
	if err != nil {
		return Session{}, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].IssuedAt.After(sessions[j].IssuedAt)
	})
	for _, s := range sessions {
		if s.Status == StatusActive {
			return s, nil
		}
	}
	return Session{}, NotFoundError{ServerName: serverName}
}

// Invalidate transitions every active session for a server to revoked and
// returns the number transitioned. It holds the same per-server lock as
// Save, so a rotation cannot race a concurrent issuance into leaving a
// stale session active. Idempotent: a second call finds nothing active.
func (fs *FileStore) Invalidate(serverName string) (int, error) {
	unlock, err := fs.lockServer(serverName)
	if err != nil {
		return 0, err
	}
	defer unlock()

	sessions, err := fs.readServer(serverName)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, s := range sessions {
		if s.Status != StatusActive {
			continue
		}
		s.Status = StatusRevoked
		if err := fs.write(s); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// MarkExpired persists the active→expired transition for a session, so
// stale records age out of ListActive.
func (fs *FileStore) MarkExpired(s Session) error {
	unlock, err := fs.lockServer(s.ServerName)
	if err != nil {
		return err
	}
	defer unlock()

	s.Status = StatusExpired
	return fs.write(s)
}

// ListActive returns all currently active sessions across servers. Each
// call re-queries the filesystem; the result is a finite snapshot, not a
// live cursor.
func (fs *FileStore) ListActive() ([]Session, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, PersistenceError{Op: "list", Path: fs.baseDir, Err: err}
	}

	var active []Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sessions, err := fs.readDir(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if s.Status == StatusActive {
				active = append(active, s)
			}
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].IssuedAt.Before(active[j].IssuedAt)
	})
	return active, nil
}

// Cleanup removes expired and revoked records whose expiry is older than
// the cutoff. Best effort: unreadable records are skipped, and the
// per-server lock is only held around a single record's removal so
// cleanup never starves live traffic.
func (fs *FileStore) Cleanup(olderThan time.Duration) error {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return PersistenceError{Op: "cleanup", Path: fs.baseDir, Err: err}
	}

	cutoff := time.Now().Add(-olderThan)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		serverName := entry.Name()
		sessions, err := fs.readDir(filepath.Join(fs.baseDir, serverName))
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if s.Status == StatusActive || s.ExpiresAt.After(cutoff) {
				continue
			}
			unlock, err := fs.lockServer(s.ServerName)
			if err != nil {
				fs.logger.Warn("skipping cleanup for %s: %v", s.ServerName, err)
				continue
			}
			path := filepath.Join(fs.serverDir(s.ServerName), recordName(s))
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				fs.logger.Warn("failed to remove stale session record %s: %v", path, err)
			}
			unlock()
		}
	}
	return nil
}

// readServer loads every record for one server, skipping unreadable or
// invalid files.
func (fs *FileStore) readServer(serverName string) ([]Session, error) {
	dir := fs.serverDir(serverName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	return fs.readDir(dir)
}

func (fs *FileStore) readDir(dir string) ([]Session, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, PersistenceError{Op: "read", Path: dir, Err: err}
	}

	var sessions []Session
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
