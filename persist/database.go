// Package persist provides the storage and logging building blocks shared
// by the wallet core: a thin wrapper around a transactional bbolt database,
// and a file-backed logger.
package persist

import (
	"errors"
	"time"

	bolt "github.com/rivine/bbolt"
)

// ErrBadVersion is returned when an existing database's metadata does not
// match what the caller expects.
var ErrBadVersion = errors.New("persist: database version mismatch")

// Metadata identifies the schema a database was created with.
type Metadata struct {
	Header  string
	Version string
}

var metadataBucket = []byte("Metadata")

// Database is a persist-level wrapper around a bbolt database, mirroring
// rivine's persist.BoltDatabase: every wallet sub-namespace lives as a
// top-level bucket inside a single process-wide handle.
type Database struct {
	Metadata
	*bolt.DB
}

// OpenDatabase opens (creating if necessary) the bbolt database at filename
// and verifies its metadata matches md.
func OpenDatabase(md Metadata, filename string) (*Database, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	d := &Database{Metadata: md, DB: db}
	if err := d.checkMetadata(md); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) checkMetadata(md Metadata) error {
	return d.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(metadataBucket)
		if err != nil {
			return err
		}
		header := bucket.Get([]byte("Header"))
		version := bucket.Get([]byte("Version"))
		if header == nil && version == nil {
			if err := bucket.Put([]byte("Header"), []byte(md.Header)); err != nil {
				return err
			}
			return bucket.Put([]byte("Version"), []byte(md.Version))
		}
		if string(header) != md.Header {
			return ErrBadVersion
		}
		if string(version) != md.Version {
			return ErrBadVersion
		}
		return nil
	})
}

// Close closes the underlying bbolt database.
func (d *Database) Close() error {
	return d.DB.Close()
}
