package bolt

import (
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/odvcencio/geogot/pkg/object"
)

// Objects implements object.Backend. Values are zstd-compressed envelopes
// keyed by object id.
type Objects struct {
	db *DB
}

var _ object.Backend = (*Objects)(nil)

func (o *Objects) Get(h object.Hash) (object.ObjectType, []byte, error) {
	var raw []byte
	err := o.db.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketObjects).Get([]byte(h))
		if v == nil {
			return fmt.Errorf("%s: %w", h, object.ErrNotFound)
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	plain, err := object.DecompressZstd(raw)
	if err != nil {
		return "", nil, fmt.Errorf("decompress %s: %w", h, err)
	}
	return object.ParseEnvelope(h, plain)
}

func (o *Objects) Put(h object.Hash, objType object.ObjectType, data []byte) (bool, error) {
	raw, err := object.CompressZstd(object.Envelope(objType, data))
	if err != nil {
		return false, fmt.Errorf("object write compress: %w", err)
	}
	wasNew := false
	err = o.db.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketObjects)
		if b.Get([]byte(h)) != nil {
			return nil
		}
		wasNew = true
		return b.Put([]byte(h), raw)
	})
	return wasNew, err
}

func (o *Objects) Has(h object.Hash) (bool, error) {
	found := false
	err := o.db.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(bucketObjects).Get([]byte(h)) != nil
		return nil
	})
	return found, err
}

// Len returns the number of stored objects.
func (o *Objects) Len() (int, error) {
	n := 0
	err := o.db.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketObjects).Stats().KeyN
		return nil
	})
	return n, err
}
