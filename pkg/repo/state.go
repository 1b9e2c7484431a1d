package repo

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/object"
)

// OperationKind names a multi-step operation that can suspend on conflicts.
type OperationKind string

const (
	OpMerge      OperationKind = "merge"
	OpCherryPick OperationKind = "cherry-pick"
	OpRebase     OperationKind = "rebase"
	OpRevert     OperationKind = "revert"
)

// OperationStatus is the state machine of a suspended operation:
// in-progress -> conflicted -> (in-progress ...) -> done | aborted.
type OperationStatus string

const (
	StatusInProgress OperationStatus = "in-progress"
	StatusConflicted OperationStatus = "conflicted"
	StatusDone       OperationStatus = "done"
	StatusAborted    OperationStatus = "aborted"
)

// ConflictState is one conflict of a suspended step.
type ConflictState struct {
	Path     string      `toml:"path"`
	Ancestor object.Hash `toml:"ancestor,omitempty"`
	Ours     object.Hash `toml:"ours,omitempty"`
	Theirs   object.Hash `toml:"theirs,omitempty"`
	Resolved bool        `toml:"resolved"`
}

// OperationState is everything needed to resume an operation in a later
// invocation. Branch is the full ref HEAD pointed at, empty when detached.
// Onto is the tip built so far; Branch itself only moves when the
// operation completes.
type OperationState struct {
	ID        string          `toml:"id"`
	Kind      OperationKind   `toml:"kind"`
	Status    OperationStatus `toml:"status"`
	Started   time.Time       `toml:"started"`
	Branch    string          `toml:"branch,omitempty"`
	OrigHead  object.Hash     `toml:"orig_head"`
	Onto      object.Hash     `toml:"onto"`
	Target    object.Hash     `toml:"target,omitempty"`
	Current   object.Hash     `toml:"current,omitempty"`
	Remaining []object.Hash   `toml:"remaining,omitempty"`
	Created   int             `toml:"created"`

	MergeHeads []object.Hash `toml:"merge_heads,omitempty"`
	Strategy   string        `toml:"strategy,omitempty"`
	Message    string        `toml:"message,omitempty"`

	// Trees of the suspended step's three-way merge.
	BaseTree   object.Hash `toml:"base_tree,omitempty"`
	OursTree   object.Hash `toml:"ours_tree,omitempty"`
	TheirsTree object.Hash `toml:"theirs_tree,omitempty"`

	Conflicts []ConflictState `toml:"conflicts,omitempty"`
}

func newOperation(kind OperationKind, branch string, head object.Hash, now time.Time) *OperationState {
	return &OperationState{
		ID:       uuid.NewString(),
		Kind:     kind,
		Status:   StatusInProgress,
		Started:  now.UTC().Truncate(time.Second),
		Branch:   branch,
		OrigHead: head,
		Onto:     head,
	}
}

// Unresolved returns the conflicts not yet marked resolved.
func (s *OperationState) Unresolved() []ConflictState {
	var out []ConflictState
	for _, c := range s.Conflicts {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out
}

func (s *OperationState) setConflicts(cs []merge.Conflict) {
	s.Conflicts = make([]ConflictState, len(cs))
	for i, c := range cs {
		s.Conflicts[i] = ConflictState{Path: c.Path, Ancestor: c.Ancestor, Ours: c.Ours, Theirs: c.Theirs}
	}
}

func (s *OperationState) clearStep() {
	s.Current = ""
	s.BaseTree, s.OursTree, s.TheirsTree = "", "", ""
	s.Conflicts = nil
}

// StateStore persists the suspended operation, if any.
type StateStore interface {
	// Load returns the stored state or ErrNoOperation.
	Load() (*OperationState, error)
	Save(*OperationState) error
	// Clear removes the stored state. Clearing an empty store is not an
	// error.
	Clear() error
}

// FileStateStore keeps the state as a TOML file.
type FileStateStore struct {
	path string
}

func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

func (s *FileStateStore) Load() (*OperationState, error) {
	var st OperationState
	if _, err := toml.DecodeFile(s.path, &st); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoOperation
		}
		return nil, fmt.Errorf("load operation state: %w", err)
	}
	return &st, nil
}

func (s *FileStateStore) Save(st *OperationState) error {
	return writeTOML(s.path, st)
}

func (s *FileStateStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear operation state: %w", err)
	}
	return nil
}

// MemoryStateStore keeps a copy of the state in memory.
type MemoryStateStore struct {
	mu sync.Mutex
	st *OperationState
}

func NewMemoryStateStore() *MemoryStateStore { return &MemoryStateStore{} }

func (s *MemoryStateStore) Load() (*OperationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == nil {
		return nil, ErrNoOperation
	}
	return s.st.clone(), nil
}

func (s *MemoryStateStore) Save(st *OperationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st.clone()
	return nil
}

func (s *MemoryStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = nil
	return nil
}

func (s *OperationState) clone() *OperationState {
	c := *s
	c.Remaining = append([]object.Hash(nil), s.Remaining...)
	c.MergeHeads = append([]object.Hash(nil), s.MergeHeads...)
	c.Conflicts = append([]ConflictState(nil), s.Conflicts...)
	return &c
}
