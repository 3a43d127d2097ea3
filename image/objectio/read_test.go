package objectio

import (
	"context"
	"testing"
	"time"

	"github.com/in-han/objimage/image"
	"github.com/in-han/objimage/image/copyup"
	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/layout"
	"github.com/in-han/objimage/image/lockset"
	"github.com/in-han/objimage/image/objectmap"
	"github.com/in-han/objimage/image/store"
	"github.com/in-han/objimage/image/store/memstore"
	"github.com/in-han/objimage/image/workqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOverlap struct {
	bytes int64
	err   error
}

func (f fakeOverlap) GetParentOverlap(ctx context.Context, snapID uint64) (int64, error) {
	return f.bytes, f.err
}

type fakeParentImage struct {
	pool workqueue.Queue
	data []byte
	err  error
}

func (p *fakeParentImage) AioRead(ctx context.Context, extents []extent.Extent, buf []byte, flags store.ReadFlags, cb func(store.Result)) {
	p.pool.Queue(ctx, func(ctx context.Context) {
		if p.err != nil {
			cb(store.Result{Code: -1, Err: p.err})
			return
		}
		n := copy(buf, p.data)
		cb(store.Result{N: int64(n), Code: 0, Data: buf[:n]})
	})
}

func newTestImage(t *testing.T, objSize uint64) (*image.Context, *memstore.Store, *objectmap.MemMap, *workqueue.Pool) {
	t.Helper()
	pool := workqueue.NewPool(4, 16)
	t.Cleanup(pool.Close)

	st := memstore.New(pool)
	om := objectmap.NewMemMap(pool)

	img := &image.Context{
		Name:            "test",
		Layout:          layout.Layout{ObjectSize: objSize},
		Locks:           &lockset.LockSet{},
		ObjectMap:       om,
		Store:           st,
		Queue:           pool,
		EnableAllocHint: true,
	}
	img.Copyup = copyup.New(func(ctx context.Context, objectNo uint64, extents []extent.Extent, ops []store.Op) store.Result {
		return store.Result{Code: 0}
	}, pool)
	return img, st, om, pool
}

func awaitResult(t *testing.T, ch <-chan store.Result) store.Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion")
		return store.Result{}
	}
}

// Scenario 1: no parent, object absent in the object map.
func TestReadNoParentObjectAbsent(t *testing.T) {
	img, _, om, _ := newTestImage(t, 4096)
	om.Set(0, objectmap.StateNonexistent)

	resultC := make(chan store.Result, 1)
	r := NewRead(img, "obj-0", 0, 0, 4096, store.NoSnap, false, 0, func(res store.Result) {
		resultC <- res
	})
	r.Send(context.Background())

	res := awaitResult(t, resultC)
	assert.True(t, store.IsNotFound(res.Err))
	assert.Equal(t, int64(0), res.N)
}

// Scenario 2: parent present, head miss, copy-on-read disabled.
func TestReadParentPresentHeadMissNoCoR(t *testing.T) {
	img, _, om, pool := newTestImage(t, 4096)
	om.Set(0, objectmap.StateExists) // MayExist must say true so the head read is actually attempted
	img.Overlap = fakeOverlap{bytes: 4096}
	img.Parent = &fakeParentImage{pool: pool, data: []byte("parent-data")}
	img.CloneCopyOnRead = false

	resultC := make(chan store.Result, 1)
	r := NewRead(img, "obj-0", 0, 0, 4096, store.NoSnap, false, 0, func(res store.Result) {
		resultC <- res
	})
	r.Send(context.Background())

	res := awaitResult(t, resultC)
	require.NoError(t, res.Err)
	assert.True(t, res.N > 0)

	_, coalescing := img.Copyup.StatsFor(0)
	assert.False(t, coalescing)
}

// Scenario 3: parent present, head miss, copy-on-read enabled.
func TestReadParentPresentHeadMissWithCoR(t *testing.T) {
	img, _, om, pool := newTestImage(t, 4096)
	om.Set(0, objectmap.StateExists)
	img.Overlap = fakeOverlap{bytes: 4096}
	img.Parent = &fakeParentImage{pool: pool, data: []byte("parent-data")}
	img.CloneCopyOnRead = true

	resultC := make(chan store.Result, 1)
	r := NewRead(img, "obj-0", 0, 0, 4096, store.NoSnap, false, 0, func(res store.Result) {
		resultC <- res
	})
	r.Send(context.Background())

	res := awaitResult(t, resultC)
	require.NoError(t, res.Err)
	assert.True(t, res.N > 0)

	require.Eventually(t, func() bool {
		_, coalescing := img.Copyup.StatsFor(0)
		return !coalescing
	}, time.Second, time.Millisecond)
}

func TestCopyOnReadEligibility(t *testing.T) {
	img, _, _, _ := newTestImage(t, 4096)
	img.CloneCopyOnRead = true

	r := &ReadRequest{}
	r.initBase(img, "obj-0", 0, 0, 4096, store.NoSnap, func(store.Result) {})

	assert.True(t, r.copyOnReadEligible(context.Background()))

	img.ReadOnly = true
	assert.False(t, r.copyOnReadEligible(context.Background()))
}
