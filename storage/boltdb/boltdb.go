// Package boltdb provides a persistent storage.Engine backed by bbolt.
//
// Each column family maps to one bucket; committed log entries are appended
// to a sequence-keyed journal bucket for downstream consumption. Batch
// commits run inside a single bbolt update transaction, which gives the
// all-or-nothing guarantee the chain core relies on.
package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/hupe1980/bloomchain/storage"
)

var (
	bucketMetadata = []byte("metadata")
	bucketData     = []byte("data")
	bucketJournal  = []byte("journal")
)

func bucketFor(cf storage.ColumnFamily) []byte {
	if cf == storage.MetadataCF {
		return bucketMetadata
	}
	return bucketData
}

// Engine is a bbolt-backed storage.Engine.
type Engine struct {
	db *bolt.DB
}

// Open opens (or creates) the database file at path.
func Open(path string, mode os.FileMode, options *bolt.Options) (*Engine, error) {
	db, err := bolt.Open(path, mode, options)
	if err != nil {
		return nil, fmt.Errorf("boltdb: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketMetadata, bucketData, bucketJournal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("boltdb: init buckets: %w", err)
	}

	return &Engine{db: db}, nil
}

// Get reads the latest committed value for key.
func (e *Engine) Get(ctx context.Context, cf storage.ColumnFamily, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketFor(cf)).Get(key)
		if v == nil {
			return storage.ErrNotFound
		}
		// bbolt slices are only valid inside the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot starts a read-only transaction and exposes it as a snapshot.
func (e *Engine) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("boltdb: begin read tx: %w", err)
	}
	return &snapshot{tx: tx}, nil
}

// Commit applies the whole batch in one update transaction.
func (e *Engine) Commit(ctx context.Context, batch *storage.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.db.Update(func(tx *bolt.Tx) error {
		for _, op := range batch.Ops() {
			if err := tx.Bucket(bucketFor(op.CF)).Put(op.Key, op.Value); err != nil {
				return err
			}
		}

		ld, ok := batch.LogData()
		if !ok {
			return nil
		}
		journal := tx.Bucket(bucketJournal)
		seq, err := journal.NextSequence()
		if err != nil {
			return err
		}
		var seqKey [8]byte
		binary.BigEndian.PutUint64(seqKey[:], seq)
		return journal.Put(seqKey[:], ld.Encode())
	})
}

// Journal returns the committed log entries in commit order.
func (e *Engine) Journal() ([]storage.LogData, error) {
	var out []storage.LogData
	err := e.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJournal).ForEach(func(_, v []byte) error {
			ld, err := storage.DecodeLogData(v)
			if err != nil {
				return err
			}
			out = append(out, ld)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (e *Engine) Close() error {
	return e.db.Close()
}

type snapshot struct {
	tx *bolt.Tx
}

func (s *snapshot) Get(cf storage.ColumnFamily, key []byte) ([]byte, error) {
	v := s.tx.Bucket(bucketFor(cf)).Get(key)
	if v == nil {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *snapshot) Release() {
	_ = s.tx.Rollback()
}
