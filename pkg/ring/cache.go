package ring

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketPlacement = []byte("placement")
	keySnapshot     = []byte("snapshot")
)

// Cache persists the last good placement snapshot to a local bbolt file.
// It exists so a gateway restart can still route while the placement
// service is unreachable.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (or creates) the snapshot cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open placement cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPlacement)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close closes the cache file.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Store persists raw placement data, replacing any previous snapshot.
func (c *Cache) Store(raw []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlacement).Put(keySnapshot, raw)
	})
}

// Load returns the cached snapshot, or an error if none is stored or the
// stored bytes no longer parse.
func (c *Cache) Load() (*Snapshot, error) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPlacement).Get(keySnapshot)
		if data == nil {
			return fmt.Errorf("no cached placement snapshot")
		}
		raw = append(raw, data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}
