package objectmap

import (
	"context"
	"encoding/binary"

	"github.com/in-han/objimage/image/workqueue"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var bucketKeyObjectMap = []byte("objectmap")

// BoltMap is a Map persisted in a bbolt database, one bucket per image
// (namespaced by name), one key per object index. This mirrors
// snapshot/storage/bolt.go's bucket-per-namespace, composite-key shape,
// adapted from a parent/child snapshot graph to a flat object-index ->
// state bitmap.
type BoltMap struct {
	db    *bolt.DB
	image string
	km    *keyMutex
	queue workqueue.Queue
}

// NewBoltMap opens (creating if needed) the object-map bucket for image
// within db.
func NewBoltMap(db *bolt.DB, image string, q workqueue.Queue) (*BoltMap, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists(bucketKeyObjectMap)
		if err != nil {
			return errors.Wrap(err, "failed to create object map bucket")
		}
		_, err = bkt.CreateBucketIfNotExists([]byte(image))
		return errors.Wrap(err, "failed to create image bucket")
	})
	if err != nil {
		return nil, err
	}

	return &BoltMap{db: db, image: image, km: newKeyMutex(), queue: q}, nil
}

func objectKey(objectNo uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, objectNo)
	return b
}

func (m *BoltMap) bucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(bucketKeyObjectMap).Bucket([]byte(m.image))
}

func (m *BoltMap) get(objectNo uint64) State {
	var s State
	_ = m.db.View(func(tx *bolt.Tx) error {
		v := m.bucket(tx).Get(objectKey(objectNo))
		if len(v) == 1 {
			s = State(v[0])
		} else {
			s = StateNonexistent
		}
		return nil
	})
	return s
}

// MayExist implements Map.
func (m *BoltMap) MayExist(ctx context.Context, objectNo uint64) bool {
	return m.get(objectNo) != StateNonexistent
}

// UpdateRequired implements Map.
func (m *BoltMap) UpdateRequired(ctx context.Context, objectNo uint64, newState State) bool {
	return m.get(objectNo) != newState
}

// AioUpdate implements Map.
func (m *BoltMap) AioUpdate(ctx context.Context, objectNo uint64, newState State, expected *State, cb func(error)) bool {
	if err := m.km.Lock(ctx, objectNo); err != nil {
		m.queue.Queue(ctx, func(context.Context) { cb(err) })
		return true
	}

	var noop bool
	err := m.db.Update(func(tx *bolt.Tx) error {
		bkt := m.bucket(tx)
		v := bkt.Get(objectKey(objectNo))
		current := StateNonexistent
		if len(v) == 1 {
			current = State(v[0])
		}
		if expected != nil && current != *expected {
			noop = true
			return nil
		}
		if current == newState {
			noop = true
			return nil
		}
		return bkt.Put(objectKey(objectNo), []byte{byte(newState)})
	})

	if noop || err != nil {
		m.km.Unlock(objectNo)
		if err == nil {
			return false
		}
		wrapped := errors.Wrap(err, "failed to update object map")
		m.queue.Queue(ctx, func(context.Context) { cb(wrapped) })
		return true
	}

	m.queue.Queue(ctx, func(context.Context) {
		defer m.km.Unlock(objectNo)
		cb(nil)
	})
	return true
}
