// Package bolt keeps objects, refs and reflogs in a single bbolt database
// file.
package bolt

import (
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
)

var (
	bucketObjects = []byte("objects")
	bucketRefs    = []byte("refs")
	bucketReflog  = []byte("reflog")
)

// DB is an open database. Objects and Refs return views over it.
type DB struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketObjects, bucketRefs, bucketReflog} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init %s: %w", path, err), db.Close())
	}
	return &DB{db: db, now: time.Now}, nil
}

// Close releases the database file.
func (d *DB) Close() error { return d.db.Close() }

// Objects returns the object backend view.
func (d *DB) Objects() *Objects { return &Objects{db: d} }

// Refs returns the ref store view.
func (d *DB) Refs() *Refs { return &Refs{db: d} }
