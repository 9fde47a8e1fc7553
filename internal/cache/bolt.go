package cache

import (
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/rs/zerolog"
)

var responsesBucket = []byte("responses")

// Bolt is a persistent Store backed by a single-file bolt database, for
// deployments that want the cache to survive restarts.
type Bolt struct {
	db  *bolt.DB
	log zerolog.Logger
}

// NewBolt opens (or creates) the cache database at path.
func NewBolt(path string, log zerolog.Logger) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: opening bolt db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists(responsesBucket)
		return berr
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating bucket: %w", err)
	}
	return &Bolt{db: db, log: log}, nil
}

func (b *Bolt) Get(key string) ([]byte, bool) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(responsesBucket).Get([]byte(key))
		if v != nil {
			value = make([]byte, len(v))
			copy(value, v)
		}
		return nil
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("cache read failed")
		return nil, false
	}
	return value, value != nil
}

// Set writes the value; cache write failures are logged, never
// propagated, since the cache is best-effort.
func (b *Bolt) Set(key string, value []byte) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(responsesBucket).Put([]byte(key), value)
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("cache write failed")
	}
}

func (b *Bolt) Close() error { return b.db.Close() }
