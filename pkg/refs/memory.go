package refs

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/odvcencio/geogot/pkg/object"
)

// MemoryStore is a Store held in memory, for tests and scratch
// repositories.
type MemoryStore struct {
	mu   sync.Mutex
	refs map[string]Ref
	logs map[string][]ReflogEntry
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{refs: make(map[string]Ref), logs: make(map[string][]ReflogEntry), now: time.Now}
}

func (s *MemoryStore) Read(name string) (Ref, error) {
	if err := ValidateName(name); err != nil {
		return Ref{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[name]
	if !ok {
		return Ref{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ref, nil
}

func (s *MemoryStore) CompareAndSwap(name string, expected, next object.Hash, reason string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if next.IsNull() {
		return fmt.Errorf("update ref %q: empty target", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.refs[name]
	if cur.IsSymbolic() {
		return fmt.Errorf("update ref %q: %w", name, ErrSymbolic)
	}
	if cur.Target != expected {
		return mismatch(name, expected, cur.Target)
	}
	s.refs[name] = Ref{Name: name, Target: next}
	if reason == "" {
		reason = "update"
	}
	s.logs[name] = append(s.logs[name], ReflogEntry{Ref: name, OldHash: cur.Target, NewHash: next, Timestamp: s.now().Unix(), Reason: reason})
	return nil
}

func (s *MemoryStore) SetSymbolic(name, target string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateName(target); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[name] = Ref{Name: name, Symbolic: target}
	return nil
}

func (s *MemoryStore) Delete(name string, expected object.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.refs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if !expected.IsNull() && cur.Target != expected {
		return mismatch(name, expected, cur.Target)
	}
	delete(s.refs, name)
	delete(s.logs, name)
	return nil
}

func (s *MemoryStore) List(prefix string) ([]Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Ref
	for name, ref := range s.refs {
		if strings.HasPrefix(name, prefix) {
			out = append(out, ref)
		}
	}
	slices.SortFunc(out, func(a, b Ref) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *MemoryStore) Reflog(name string, limit int) ([]ReflogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(slices.Clone(s.logs[name]), limit), nil
}
