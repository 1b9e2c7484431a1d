package object

import (
	"errors"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Backend persists raw encoded objects by id. Implementations must be safe
// for concurrent use; Put of an id that is already present is a no-op that
// reports wasNew=false. Get returns an error wrapping ErrNotFound for
// absent ids.
type Backend interface {
	Get(h Hash) (ObjectType, []byte, error)
	Put(h Hash, objType ObjectType, data []byte) (wasNew bool, err error)
	Has(h Hash) (bool, error)
}

// DefaultCacheSize is the number of decoded objects kept by a Store.
const DefaultCacheSize = 4096

// Store is a content-addressed object store over a Backend. Decoded
// objects are cached; objects returned by Read and the typed readers are
// shared and must not be mutated.
type Store struct {
	backend Backend
	cache   *lru.Cache[Hash, Object]
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	cacheSize int
}

// WithCacheSize sets the decoded-object cache capacity. Zero disables it.
func WithCacheSize(n int) StoreOption {
	return func(c *storeConfig) { c.cacheSize = n }
}

// NewStore wraps backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	cfg := storeConfig{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Store{backend: backend}
	if cfg.cacheSize > 0 {
		cache, err := lru.New[Hash, Object](cfg.cacheSize)
		if err == nil {
			s.cache = cache
		}
	}
	return s
}

// NewMemoryStore returns a Store over a fresh MemoryBackend.
func NewMemoryStore() *Store {
	return NewStore(NewMemoryBackend())
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Close closes the backend when it holds resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Has reports whether the store contains an object with the given id.
func (s *Store) Has(h Hash) (bool, error) {
	if h.IsNull() {
		return false, nil
	}
	if s.cache != nil && s.cache.Contains(h) {
		return true, nil
	}
	return s.backend.Has(h)
}

// Write encodes and stores obj, returning its id and whether it was new.
func (s *Store) Write(obj Object) (Hash, bool, error) {
	data := Encode(obj)
	h := HashObject(obj.Type(), data)
	wasNew, err := s.backend.Put(h, obj.Type(), data)
	if err != nil {
		return "", false, fmt.Errorf("object write %s: %w", h, err)
	}
	return h, wasNew, nil
}

// Read fetches and decodes the object with id h.
func (s *Store) Read(h Hash) (Object, error) {
	if h.IsNull() {
		return nil, fmt.Errorf("object read: null id: %w", ErrNotFound)
	}
	if s.cache != nil {
		if obj, ok := s.cache.Get(h); ok {
			return obj, nil
		}
	}
	objType, data, err := s.backend.Get(h)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", h, err)
	}
	obj, err := Decode(objType, data)
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", h, err)
	}
	if s.cache != nil {
		s.cache.Add(h, obj)
	}
	return obj, nil
}

// IsNotFound reports whether err means an object was absent.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func readAs[T Object](s *Store, h Hash, want ObjectType) (T, error) {
	var zero T
	obj, err := s.Read(h)
	if err != nil {
		return zero, err
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("object %s: %w: got %q, want %q", h, ErrTypeMismatch, obj.Type(), want)
	}
	return typed, nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// ReadTree reads a tree. The NULL id reads as the empty tree.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	if h.IsNull() || h == EmptyTreeHash {
		return &TreeObj{}, nil
	}
	return readAs[*TreeObj](s, h, TypeTree)
}

// WriteTree stores a tree.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	h, _, err := s.Write(tr)
	return h, err
}

// ReadCommit reads a commit.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	return readAs[*CommitObj](s, h, TypeCommit)
}

// WriteCommit stores a commit.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	h, _, err := s.Write(c)
	return h, err
}

// ReadRecord reads a record.
func (s *Store) ReadRecord(h Hash) (*RecordObj, error) {
	return readAs[*RecordObj](s, h, TypeRecord)
}

// WriteRecord stores a record.
func (s *Store) WriteRecord(r *RecordObj) (Hash, error) {
	h, _, err := s.Write(r)
	return h, err
}

// ReadRecordType reads a schema.
func (s *Store) ReadRecordType(h Hash) (*RecordTypeObj, error) {
	return readAs[*RecordTypeObj](s, h, TypeRecordType)
}

// WriteRecordType stores a schema.
func (s *Store) WriteRecordType(rt *RecordTypeObj) (Hash, error) {
	h, _, err := s.Write(rt)
	return h, err
}

// ReadTag reads an annotated tag.
func (s *Store) ReadTag(h Hash) (*TagObj, error) {
	return readAs[*TagObj](s, h, TypeTag)
}

// WriteTag stores an annotated tag.
func (s *Store) WriteTag(t *TagObj) (Hash, error) {
	h, _, err := s.Write(t)
	return h, err
}
