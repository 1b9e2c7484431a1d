package object

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileBackend stores loose objects with a 2-character fan-out directory
// layout: objects/ab/cdef0123... Each file holds the zstd-compressed
// envelope "type len\0content".
type FileBackend struct {
	root string
}

// NewFileBackend creates a FileBackend rooted at the given directory. The
// objects/ subdirectory is created lazily on first write.
func NewFileBackend(root string) *FileBackend {
	return &FileBackend{root: root}
}

func (s *FileBackend) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

func validHash(h Hash) error {
	if len(h) < 3 || strings.ContainsAny(string(h), `/\.`) {
		return fmt.Errorf("invalid object id %q", h)
	}
	return nil
}

// Has reports whether the backend contains an object with the given id.
func (s *FileBackend) Has(h Hash) (bool, error) {
	if err := validHash(h); err != nil {
		return false, nil
	}
	_, err := os.Stat(s.objectPath(h))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Put stores an object. Writes are atomic: data is written to a temp file
// and then renamed into place.
func (s *FileBackend) Put(h Hash, objType ObjectType, data []byte) (bool, error) {
	if err := validHash(h); err != nil {
		return false, err
	}
	if ok, err := s.Has(h); err != nil {
		return false, err
	} else if ok {
		return false, nil
	}

	raw, err := CompressZstd(Envelope(objType, data))
	if err != nil {
		return false, fmt.Errorf("object write compress: %w", err)
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return false, fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("object write close: %w", err)
	}
	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return false, fmt.Errorf("object write rename: %w", err)
	}
	return true, nil
}

// Get retrieves an object by id, returning its type and raw content.
func (s *FileBackend) Get(h Hash) (ObjectType, []byte, error) {
	if err := validHash(h); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	compressed, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%s: %w", h, ErrNotFound)
		}
		return "", nil, err
	}
	raw, err := DecompressZstd(compressed)
	if err != nil {
		return "", nil, fmt.Errorf("decompress %s: %w", h, err)
	}
	return ParseEnvelope(h, raw)
}

// Envelope frames data as "type len\0content".
func Envelope(objType ObjectType, data []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	return append([]byte(header), data...)
}

// ParseEnvelope reverses Envelope, checking the recorded length.
func ParseEnvelope(h Hash, raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("%w: %s: no envelope terminator", ErrMalformed, h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typ, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("%w: %s: invalid header %q", ErrMalformed, h, header)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: invalid length %q", ErrMalformed, h, lenStr)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("%w: %s: length mismatch (header=%d, actual=%d)", ErrMalformed, h, length, len(content))
	}
	return ObjectType(typ), content, nil
}
