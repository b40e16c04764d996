package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/log"
	bolt "go.etcd.io/bbolt"
)

var bucketState = []byte("state")

const (
	keySchemaVersion = "schema_version"
	keyBurners       = "burners"
	keyPending       = "pending"
	keyInflight      = "inflight"
	keyCompleted     = "completed"

	schemaVersion byte = 1
)

// BoltStore persists a Snapshot to a single bbolt database file, one
// bucket, one JSON blob per sequence, plus a schema-version byte so a
// future format change can detect and refuse an old file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the database at path. A
// corrupt existing file is moved aside and a fresh one is created in
// its place, so the caller always gets back a usable Store.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := openOrRecover(path)
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketState)
		if err != nil {
			return err
		}
		if b.Get([]byte(keySchemaVersion)) == nil {
			return b.Put([]byte(keySchemaVersion), []byte{schemaVersion})
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: initializing bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func openOrRecover(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err == nil {
		return db, nil
	}

	log.WithComponent("storage").Error().Err(err).Str("path", path).
		Msg("persisted state file is corrupt or unreadable, starting empty")

	backup := fmt.Sprintf("%s.corrupt-%d", path, time.Now().UnixNano())
	if renameErr := os.Rename(path, backup); renameErr != nil && !os.IsNotExist(renameErr) {
		return nil, fmt.Errorf("storage: could not move aside corrupt file: %w", renameErr)
	}

	return bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
}

// Load returns the last saved Snapshot, or an empty one if no state has
// ever been saved.
func (s *BoltStore) Load() (Snapshot, error) {
	snap := EmptySnapshot()

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(keyBurners)); data != nil {
			if err := json.Unmarshal(data, &snap.Burners); err != nil {
				return fmt.Errorf("unmarshal burners: %w", err)
			}
		}
		if data := b.Get([]byte(keyPending)); data != nil {
			if err := json.Unmarshal(data, &snap.Pending); err != nil {
				return fmt.Errorf("unmarshal pending: %w", err)
			}
		}
		if data := b.Get([]byte(keyInflight)); data != nil {
			if err := json.Unmarshal(data, &snap.Inflight); err != nil {
				return fmt.Errorf("unmarshal inflight: %w", err)
			}
		}
		if data := b.Get([]byte(keyCompleted)); data != nil {
			if err := json.Unmarshal(data, &snap.Completed); err != nil {
				return fmt.Errorf("unmarshal completed: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.WithComponent("storage").Error().Err(err).Msg("failed to decode persisted state, starting empty")
		return EmptySnapshot(), nil
	}

	return snap, nil
}

// Save serializes snap and replaces the persisted state in one bbolt
// write transaction (atomic from the point of view of any reader).
func (s *BoltStore) Save(snap Snapshot) error {
	burnersData, err := json.Marshal(snap.Burners)
	if err != nil {
		return fmt.Errorf("storage: marshal burners: %w", err)
	}
	pendingData, err := json.Marshal(snap.Pending)
	if err != nil {
		return fmt.Errorf("storage: marshal pending: %w", err)
	}
	inflightData, err := json.Marshal(snap.Inflight)
	if err != nil {
		return fmt.Errorf("storage: marshal inflight: %w", err)
	}
	completedData, err := json.Marshal(snap.Completed)
	if err != nil {
		return fmt.Errorf("storage: marshal completed: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState)
		if err := b.Put([]byte(keyBurners), burnersData); err != nil {
			return err
		}
		if err := b.Put([]byte(keyPending), pendingData); err != nil {
			return err
		}
		if err := b.Put([]byte(keyInflight), inflightData); err != nil {
			return err
		}
		return b.Put([]byte(keyCompleted), completedData)
	})
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
