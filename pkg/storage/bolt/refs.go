package bolt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	bbolt "go.etcd.io/bbolt"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/refs"
)

const symbolicPrefix = "ref: "

// Refs implements refs.Store and refs.Reflogger. Every update runs in one
// read-write transaction, which bbolt serializes.
type Refs struct {
	db *DB
}

var (
	_ refs.Store     = (*Refs)(nil)
	_ refs.Reflogger = (*Refs)(nil)
)

func decodeRef(name string, v []byte) refs.Ref {
	s := string(v)
	if target, ok := strings.CutPrefix(s, symbolicPrefix); ok {
		return refs.Ref{Name: name, Symbolic: target}
	}
	return refs.Ref{Name: name, Target: object.Hash(s)}
}

func (r *Refs) Read(name string) (refs.Ref, error) {
	if err := refs.ValidateName(name); err != nil {
		return refs.Ref{}, err
	}
	var ref refs.Ref
	err := r.db.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketRefs).Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s", refs.ErrNotFound, name)
		}
		ref = decodeRef(name, v)
		return nil
	})
	return ref, err
}

func (r *Refs) CompareAndSwap(name string, expected, next object.Hash, reason string) error {
	if err := refs.ValidateName(name); err != nil {
		return err
	}
	if next.IsNull() {
		return fmt.Errorf("update ref %q: empty target", name)
	}
	return r.db.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		var cur refs.Ref
		if v := b.Get([]byte(name)); v != nil {
			cur = decodeRef(name, v)
		}
		if cur.IsSymbolic() {
			return fmt.Errorf("update ref %q: %w", name, refs.ErrSymbolic)
		}
		if cur.Target != expected {
			return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, refs.ErrCASMismatch, expected, cur.Target)
		}
		if err := b.Put([]byte(name), []byte(next)); err != nil {
			return err
		}
		return r.appendReflog(tx, name, cur.Target, next, reason)
	})
}

func (r *Refs) SetSymbolic(name, target string) error {
	if err := refs.ValidateName(name); err != nil {
		return err
	}
	if err := refs.ValidateName(target); err != nil {
		return err
	}
	return r.db.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRefs).Put([]byte(name), []byte(symbolicPrefix+target))
	})
}

func (r *Refs) Delete(name string, expected object.Hash) error {
	return r.db.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		v := b.Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%w: %s", refs.ErrNotFound, name)
		}
		if cur := decodeRef(name, v); !expected.IsNull() && cur.Target != expected {
			return fmt.Errorf("delete ref %q: %w (expected %s, found %s)", name, refs.ErrCASMismatch, expected, cur.Target)
		}
		if err := b.Delete([]byte(name)); err != nil {
			return err
		}
		logs := tx.Bucket(bucketReflog)
		if logs.Bucket([]byte(name)) != nil {
			return logs.DeleteBucket([]byte(name))
		}
		return nil
	})
}

func (r *Refs) List(prefix string) ([]refs.Ref, error) {
	var out []refs.Ref
	err := r.db.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRefs).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			out = append(out, decodeRef(string(k), v))
		}
		return nil
	})
	return out, err
}

func (r *Refs) appendReflog(tx *bbolt.Tx, name string, oldHash, newHash object.Hash, reason string) error {
	b, err := tx.Bucket(bucketReflog).CreateBucketIfNotExists([]byte(name))
	if err != nil {
		return err
	}
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	key := binary.BigEndian.AppendUint64(nil, seq)
	line := fmt.Sprintf("%s %s %d %s", oldHash, newHash, r.db.now().Unix(), reason)
	return b.Put(key, []byte(line))
}

func (r *Refs) Reflog(name string, limit int) ([]refs.ReflogEntry, error) {
	var entries []refs.ReflogEntry
	err := r.db.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketReflog).Bucket([]byte(name))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) == limit {
				break
			}
			// The old hash is empty for creations, so the line may start
			// with a space.
			oldHash, rest, _ := strings.Cut(string(v), " ")
			parts := strings.SplitN(rest, " ", 3)
			if len(parts) < 3 {
				continue
			}
			ts, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				continue
			}
			entries = append(entries, refs.ReflogEntry{
				Ref: name, OldHash: object.Hash(oldHash), NewHash: object.Hash(parts[0]), Timestamp: ts, Reason: parts[2],
			})
		}
		return nil
	})
	return entries, err
}
