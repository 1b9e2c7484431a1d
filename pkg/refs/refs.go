// Package refs stores named pointers into the object graph: branches,
// tags, HEAD and the working and staging snapshots.
package refs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/geogot/pkg/object"
)

var (
	ErrNotFound    = errors.New("ref not found")
	ErrCASMismatch = errors.New("ref compare-and-swap mismatch")
	ErrSymbolic    = errors.New("ref is symbolic")
	ErrInvalidName = errors.New("invalid ref name")
)

const (
	Head        = "HEAD"
	WorkHead    = "WORK_HEAD"
	StageHead   = "STAGE_HEAD"
	OrigHead    = "ORIG_HEAD"
	MergeHead   = "MERGE_HEAD"
	HeadsPrefix = "refs/heads/"
	TagsPrefix  = "refs/tags/"

	maxSymbolicDepth = 5
)

var pseudoRefs = []string{Head, MergeHead, OrigHead, StageHead, WorkHead}

// Ref is either a direct pointer to an object or a symbolic pointer to
// another ref.
type Ref struct {
	Name     string
	Target   object.Hash
	Symbolic string
}

// IsSymbolic reports whether the ref points at another ref.
func (r Ref) IsSymbolic() bool { return r.Symbolic != "" }

// Store is a ref namespace with compare-and-swap updates. Implementations
// serialize updates per ref name so that concurrent writers racing on the
// same ref see exactly one winner; the others get ErrCASMismatch.
type Store interface {
	// Read returns the named ref or ErrNotFound.
	Read(name string) (Ref, error)
	// CompareAndSwap points name at next if it currently points at
	// expected. A NULL expected requires the ref to be absent; a NULL next
	// is rejected. reason is recorded in the reflog.
	CompareAndSwap(name string, expected, next object.Hash, reason string) error
	// SetSymbolic makes name point at the ref target.
	SetSymbolic(name, target string) error
	// Delete removes name if it points at expected. A NULL expected
	// deletes unconditionally. Deleting a missing ref returns ErrNotFound.
	Delete(name string, expected object.Hash) error
	// List returns refs whose names start with prefix, sorted by name.
	List(prefix string) ([]Ref, error)
}

// ReflogEntry is one recorded ref transition.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

// Reflogger is implemented by stores that keep a history of updates.
type Reflogger interface {
	// Reflog returns up to limit entries for name, newest first. A limit
	// of zero returns every entry.
	Reflog(name string, limit int) ([]ReflogEntry, error)
}

// ValidateName rejects names that could escape the ref namespace or
// collide with lock files.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("%w: %q ends in .lock", ErrInvalidName, name)
	case strings.ContainsAny(name, " \t\n\\:"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// Resolve follows symbolic refs from name to an object id. Short names
// are tried as given, then as a branch, then as a tag.
func Resolve(s Store, name string) (object.Hash, error) {
	full, err := FullName(s, name)
	if err != nil {
		return "", err
	}
	for range maxSymbolicDepth {
		ref, err := s.Read(full)
		if err != nil {
			return "", err
		}
		if !ref.IsSymbolic() {
			return ref.Target, nil
		}
		full = ref.Symbolic
	}
	return "", fmt.Errorf("resolve %q: symbolic refs nested too deep", name)
}

// FullName expands a short name to the first existing ref among name,
// refs/heads/name and refs/tags/name.
func FullName(s Store, name string) (string, error) {
	candidates := []string{name}
	if !strings.HasPrefix(name, "refs/") {
		candidates = append(candidates, HeadsPrefix+name, TagsPrefix+name)
	}
	for _, c := range candidates {
		if _, err := s.Read(c); err == nil {
			return c, nil
		} else if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidName) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Symref returns the ref a symbolic ref points at, following chains.
// For a direct ref it returns name itself.
func Symref(s Store, name string) (string, error) {
	for range maxSymbolicDepth {
		ref, err := s.Read(name)
		if errors.Is(err, ErrNotFound) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		if !ref.IsSymbolic() {
			return name, nil
		}
		name = ref.Symbolic
	}
	return "", fmt.Errorf("symref %q: symbolic refs nested too deep", name)
}

// Set points name at next regardless of its current value.
func Set(s Store, name string, next object.Hash, reason string) error {
	for {
		cur, err := s.Read(name)
		switch {
		case errors.Is(err, ErrNotFound):
			cur = Ref{}
		case err != nil:
			return err
		case cur.IsSymbolic():
			return fmt.Errorf("set %q: %w", name, ErrSymbolic)
		}
		err = s.CompareAndSwap(name, cur.Target, next, reason)
		if !errors.Is(err, ErrCASMismatch) {
			return err
		}
	}
}

// BranchName strips refs/heads/ from a full branch ref.
func BranchName(ref string) string { return strings.TrimPrefix(ref, HeadsPrefix) }

func mismatch(name string, expected, found object.Hash) error {
	return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, ErrCASMismatch, orNone(expected), orNone(found))
}

func orNone(h object.Hash) string {
	if h.IsNull() {
		return "none"
	}
	return string(h)
}
