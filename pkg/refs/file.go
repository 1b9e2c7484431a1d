package refs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/geogot/pkg/object"
)

// ErrReflogAppendFailed is matched by RefUpdateReflogError.
var ErrReflogAppendFailed = errors.New("ref updated but reflog append failed")

// RefUpdateReflogError indicates the ref file update succeeded, but appending
// the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v", e.Ref, ErrReflogAppendFailed, e.OldHash, e.NewHash, e.Err)
}

func (e *RefUpdateReflogError) Unwrap() error { return e.Err }

func (e *RefUpdateReflogError) Is(target error) bool { return target == ErrReflogAppendFailed }

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second

	symbolicPrefix = "ref: "
	zeroHash       = "0000000000000000000000000000000000000000000000000000000000000000"
)

// FileStore keeps one file per ref under its directory and a reflog under
// logs/. Updates go through a lockfile and an atomic rename.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore opens the ref directory dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	for _, d := range []string{filepath.Join(dir, "refs", "heads"), filepath.Join(dir, "refs", "tags"), filepath.Join(dir, "logs")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("ref store: mkdir %s: %w", d, err)
		}
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(name string) string { return filepath.Join(s.dir, filepath.FromSlash(name)) }

func (s *FileStore) Read(name string) (Ref, error) {
	if err := ValidateName(name); err != nil {
		return Ref{}, err
	}
	path := s.path(name)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return Ref{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Ref{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Ref{}, fmt.Errorf("read ref %q: %w", name, err)
	}
	return parseRef(name, data)
}

func parseRef(name string, data []byte) (Ref, error) {
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, symbolicPrefix); ok {
		return Ref{Name: name, Symbolic: target}, nil
	}
	if content == "" {
		return Ref{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Ref{Name: name, Target: object.Hash(content)}, nil
}

func (s *FileStore) CompareAndSwap(name string, expected, next object.Hash, reason string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if next.IsNull() {
		return fmt.Errorf("update ref %q: empty target", name)
	}
	return s.locked(name, func(cur Ref, found bool, lock *os.File) (bool, error) {
		if cur.IsSymbolic() {
			return false, fmt.Errorf("update ref %q: %w", name, ErrSymbolic)
		}
		if cur.Target != expected {
			return false, mismatch(name, expected, cur.Target)
		}
		if _, err := lock.WriteString(string(next) + "\n"); err != nil {
			return false, fmt.Errorf("update ref %q: write: %w", name, err)
		}
		return true, nil
	}, func(cur Ref) error {
		return s.appendReflog(name, cur.Target, next, reason)
	})
}

func (s *FileStore) SetSymbolic(name, target string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateName(target); err != nil {
		return err
	}
	return s.locked(name, func(_ Ref, _ bool, lock *os.File) (bool, error) {
		if _, err := lock.WriteString(symbolicPrefix + target + "\n"); err != nil {
			return false, fmt.Errorf("update ref %q: write: %w", name, err)
		}
		return true, nil
	}, nil)
}

func (s *FileStore) Delete(name string, expected object.Hash) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return s.locked(name, func(cur Ref, found bool, _ *os.File) (bool, error) {
		if !found {
			return false, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if !expected.IsNull() && cur.Target != expected {
			return false, mismatch(name, expected, cur.Target)
		}
		if err := os.Remove(s.path(name)); err != nil {
			return false, fmt.Errorf("delete ref %q: %w", name, err)
		}
		if err := os.Remove(s.logPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("delete ref %q: reflog: %w", name, err)
		}
		return false, nil
	}, nil)
}

// locked runs fn holding name's lockfile. When fn reports commit the
// lockfile replaces the ref and after runs; otherwise the lock is dropped.
func (s *FileStore) locked(name string, fn func(cur Ref, found bool, lock *os.File) (bool, error), after func(cur Ref) error) error {
	refPath := s.path(name)
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	cur, err := s.Read(name)
	found := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	commit, err := fn(cur, found, lockFile)
	if err != nil || !commit {
		return err
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	if after == nil {
		return nil
	}
	return after(cur)
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

// List walks refs/ and the top-level pseudo refs.
func (s *FileStore) List(prefix string) ([]Ref, error) {
	var out []Ref
	add := func(name, path string) error {
		if strings.HasSuffix(name, ".lock") || !strings.HasPrefix(name, prefix) || ValidateName(name) != nil {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if ref, err := parseRef(name, data); err == nil {
			out = append(out, ref)
		}
		return nil
	}

	for _, name := range pseudoRefs {
		path := s.path(name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			if err := add(name, path); err != nil {
				return nil, fmt.Errorf("list refs: %w", err)
			}
		}
	}
	err := filepath.WalkDir(filepath.Join(s.dir, "refs"), func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		return add(filepath.ToSlash(rel), path)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	slices.SortFunc(out, func(a, b Ref) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *FileStore) logPath(name string) string {
	return filepath.Join(s.dir, "logs", filepath.FromSlash(name))
}

func (s *FileStore) appendReflog(name string, oldHash, newHash object.Hash, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	logPath := s.logPath(name)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: newHash, Err: err}
	}

	old := string(oldHash)
	if old == "" {
		old = zeroHash
	}
	line := fmt.Sprintf("%s %s %d %s\n", old, newHash, s.now().Unix(), strings.ReplaceAll(reason, "\n", " "))

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: newHash, Err: err}
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: newHash, Err: err}
	}
	return nil
}

func (s *FileStore) Reflog(name string, limit int) ([]ReflogEntry, error) {
	f, err := os.Open(s.logPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 4)
		if len(parts) < 4 {
			continue
		}
		ts, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			continue
		}
		old := object.Hash(parts[0])
		if old == zeroHash {
			old = object.NullHash
		}
		entries = append(entries, ReflogEntry{Ref: name, OldHash: old, NewHash: object.Hash(parts[1]), Timestamp: ts, Reason: parts[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	return newestFirst(entries, limit), nil
}

func newestFirst(entries []ReflogEntry, limit int) []ReflogEntry {
	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
