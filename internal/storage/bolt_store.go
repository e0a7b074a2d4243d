package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	publishedBucket  = "published"
	expiryValueBytes = 8
)

// boltStore implements a Store backed by BoltDB. Values hold the big-endian unix expiry.
type boltStore struct {
	db      *bolt.DB
	ttl     time.Duration
	cleanup *cleanupGate
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(publishedBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{
		db:      db,
		ttl:     opts.TTL,
		cleanup: newCleanupGate(opts.CleanupInterval, time.Now()),
	}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage directory: %w", err)
		}
	}
	return nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Seen reports whether key was marked and has not expired yet. Expired keys are deleted on read.
func (b *boltStore) Seen(key string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}

	now := time.Now()
	if err := b.cleanup.maybeRun(now, b.sweep); err != nil {
		return false, err
	}

	var exists bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := publishedBucketOf(tx)
		if err != nil {
			return err
		}
		k := []byte(key)
		value := bucket.Get(k)
		if value == nil {
			return nil
		}
		if expiry, ok := decodeExpiry(value); ok && expiry.After(now) {
			exists = true
			return nil
		}
		return bucket.Delete(k)
	})
	return exists, err
}

// Mark records key as published until the TTL elapses.
func (b *boltStore) Mark(key string) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.cleanup.maybeRun(now, b.sweep); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := publishedBucketOf(tx)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), encodeExpiry(now.Add(b.ttl)))
	})
}

func (b *boltStore) sweep(now time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := publishedBucketOf(tx)
		if err != nil {
			return err
		}
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func publishedBucketOf(tx *bolt.Tx) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(publishedBucket))
	if bucket == nil {
		return nil, fmt.Errorf("published bucket missing")
	}
	return bucket, nil
}

func encodeExpiry(t time.Time) []byte {
	buf := make([]byte, expiryValueBytes)
	binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
	return buf
}

// decodeExpiry decodes the expiry time from the stored byte slice.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) != expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
