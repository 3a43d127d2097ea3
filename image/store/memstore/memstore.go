// Package memstore is an in-memory reference implementation of
// store.Client used by the engine's test suite, in the spirit of
// content/content_test.go's filesystem-backed fixture but without any
// disk I/O: object bodies live in a map guarded by a mutex, and every
// callback is dispatched through a workqueue.Queue so tests exercise the
// same re-entrant-callback shape the engine relies on in production.
package memstore

import (
	"context"
	"sync"

	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/store"
	"github.com/in-han/objimage/image/workqueue"
)

type object struct {
	data   []byte
	exists bool
}

// Store is a goroutine-safe in-memory object store.
type Store struct {
	mu      sync.Mutex
	objects map[string]*object
	queue   workqueue.Queue
}

// New returns an empty Store whose callbacks are dispatched through q.
func New(q workqueue.Queue) *Store {
	return &Store{
		objects: make(map[string]*object),
		queue:   q,
	}
}

// Seed installs oid with the given contents, marking it as existing. Used
// by tests to set up fixtures without going through SubmitWrite.
func (s *Store) Seed(oid string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[oid] = &object{data: buf, exists: true}
}

func (s *Store) get(oid string) (*object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[oid]
	if !ok || !o.exists {
		return nil, false
	}
	return o, true
}

func (s *Store) deliver(ctx context.Context, cb func(store.Result), r store.Result) {
	s.queue.Queue(ctx, func(context.Context) {
		cb(r)
	})
}

// Read implements store.Client.
func (s *Store) Read(ctx context.Context, oid string, off, length int64, flags store.ReadFlags, cb func(store.Result)) {
	o, ok := s.get(oid)
	if !ok {
		s.deliver(ctx, cb, store.NotFoundResult())
		return
	}

	end := off + length
	if end > int64(len(o.data)) {
		end = int64(len(o.data))
	}
	if off > end {
		off = end
	}

	var body []byte
	if off < end {
		body = make([]byte, end-off)
		copy(body, o.data[off:end])
	}

	res := store.Result{N: int64(len(body)), Code: 0, Data: body}
	if flags.Sparse {
		if len(body) > 0 {
			res.Sparse = []extent.Extent{{Offset: 0, Length: int64(len(body))}}
		}
	}
	s.deliver(ctx, cb, res)
}

// SubmitWrite implements store.Client.
func (s *Store) SubmitWrite(ctx context.Context, oid string, ops []store.Op, snapc store.SnapContext, cb func(store.Result)) {
	s.mu.Lock()

	o, exists := s.objects[oid]
	if !exists {
		o = &object{}
	}

	assertExists := false
	for _, op := range ops {
		if op.AssertExists {
			assertExists = true
			break
		}
	}
	if assertExists && !o.exists {
		s.mu.Unlock()
		s.deliver(ctx, cb, store.NotFoundResult())
		return
	}

	var removed bool
	for _, op := range ops {
		switch op.Kind {
		case store.OpWrite:
			needed := op.Offset + int64(len(op.Data))
			if needed > int64(len(o.data)) {
				grown := make([]byte, needed)
				copy(grown, o.data)
				o.data = grown
			}
			copy(o.data[op.Offset:], op.Data)
			o.exists = true
		case store.OpWriteFull:
			o.data = append([]byte(nil), op.Data...)
			o.exists = true
		case store.OpZero:
			end := op.Offset + op.Length
			if end > int64(len(o.data)) {
				grown := make([]byte, end)
				copy(grown, o.data)
				o.data = grown
			}
			for i := op.Offset; i < end; i++ {
				o.data[i] = 0
			}
			o.exists = true
		case store.OpTruncate:
			if op.Offset <= int64(len(o.data)) {
				o.data = o.data[:op.Offset]
			} else {
				grown := make([]byte, op.Offset)
				copy(grown, o.data)
				o.data = grown
			}
			o.exists = true
		case store.OpRemove:
			removed = true
		case store.OpAllocHint:
			// no-op for an in-memory store
		}
	}

	if removed {
		o.exists = false
		o.data = nil
	}
	s.objects[oid] = o
	s.mu.Unlock()

	s.deliver(ctx, cb, store.Result{Code: 0})
}
