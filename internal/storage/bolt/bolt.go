package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/storage"
	bolt "go.etcd.io/bbolt"
)

var _ storage.LogStore = (*Store)(nil)

var bucketDispatchLog = []byte("dispatch_logs")

// Store keeps the append-only dispatch log in a BoltDB file.
type Store struct {
	db *bolt.DB
}

// New initialises the Bolt store.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDispatchLog)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes underlying Bolt DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendDispatchLog stores one delivery attempt under the next sequence id.
func (s *Store) AppendDispatchLog(ctx context.Context, entry *model.DispatchLog) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketDispatchLog)
		id, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		entry.ID = id
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		return bkt.Put(key, payload)
	})
}

// ListDispatchLogs returns all entries in insertion order.
func (s *Store) ListDispatchLogs(ctx context.Context) ([]*model.DispatchLog, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	var logs []*model.DispatchLog
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketDispatchLog)
		return bkt.ForEach(func(_, v []byte) error {
			var entry model.DispatchLog
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			logs = append(logs, &entry)
			return nil
		})
	})
	return logs, err
}
