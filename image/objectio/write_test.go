package objectio

import (
	"context"
	"testing"

	"github.com/in-han/objimage/image/copyup"
	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/objectmap"
	"github.com/in-han/objimage/image/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 4: full-object write, no parent — takes the unguarded
// short-circuit.
func TestWriteFullObjectNoParent(t *testing.T) {
	img, st, _, _ := newTestImage(t, 16)
	data := []byte("0123456789abcdef") // exactly 16 bytes: object size

	resultC := make(chan store.Result, 1)
	w := NewWrite(img, "obj-0", 0, 0, data, store.SnapContext{Seq: 1}, func(res store.Result) {
		resultC <- res
	})
	require.True(t, w.fullObject)
	w.Send(context.Background())

	res := awaitResult(t, resultC)
	require.NoError(t, res.Err)

	readC := make(chan store.Result, 1)
	r := NewRead(img, "obj-0", 0, 0, 16, store.NoSnap, false, 0, func(res store.Result) { readC <- res })
	r.Send(context.Background())
	rres := awaitResult(t, readC)
	assert.Equal(t, data, rres.Data)

	_ = st
}

// Scenario 5: partial write to a cloned image, head object absent — the
// object map reports the object absent, so the write goes straight to
// write-guard handling, parent still overlaps, copy-up runs, then the post
// update is a no-op and the write succeeds.
func TestWritePartialClonedImageObjectAbsent(t *testing.T) {
	img, _, om, pool := newTestImage(t, 8192)
	img.Overlap = fakeOverlap{bytes: 8192}
	img.Parent = &fakeParentImage{pool: pool, data: make([]byte, 8192)}

	var copyupRan bool
	img.Copyup = copyup.New(func(ctx context.Context, objectNo uint64, extents []extent.Extent, ops []store.Op) store.Result {
		copyupRan = true
		assert.NotEmpty(t, ops)
		return store.Result{Code: 0}
	}, pool)

	resultC := make(chan store.Result, 1)
	w := NewWrite(img, "obj-0", 0, 4096, make([]byte, 4096), store.SnapContext{Seq: 2}, func(res store.Result) {
		resultC <- res
	})
	w.Send(context.Background())

	res := awaitResult(t, resultC)
	require.NoError(t, res.Err)
	assert.True(t, copyupRan)

	assert.Equal(t, objectmap.StateExists, mustMapState(t, om, 0))
}

// Scenario 6: remove on an image with snapshots, object absent; the parent
// does not overlap, so the remove is sent without the guard assertion, the
// store accepts it, and the post-update to NONEXISTENT completes the
// request with success.
func TestRemoveSnapshottedImageObjectAbsentNoParentOverlap(t *testing.T) {
	img, _, om, _ := newTestImage(t, 4096)
	img.Snaps = []uint64{1}
	img.Overlap = fakeOverlap{bytes: 0} // no overlap: parent does not contribute
	om.Set(0, objectmap.StateNonexistent)

	resultC := make(chan store.Result, 1)
	w := NewRemove(img, "obj-0", 0, store.SnapContext{Seq: 3}, func(res store.Result) {
		resultC <- res
	})
	w.Send(context.Background())

	res := awaitResult(t, resultC)
	assert.NoError(t, res.Err)
	assert.Equal(t, int32(0), res.Code)
}

// Remove on an image with snapshots where the object does exist: with no
// parent no guard assertion is installed, the remove succeeds directly and
// the post-update finalizes the map.
func TestRemoveSnapshottedImageObjectExists(t *testing.T) {
	img, st, om, _ := newTestImage(t, 4096)
	img.Snaps = []uint64{1}
	st.Seed("obj-0", []byte("hello"))
	om.Set(0, objectmap.StateExists)

	resultC := make(chan store.Result, 1)
	w := NewRemove(img, "obj-0", 0, store.SnapContext{Seq: 3}, func(res store.Result) {
		resultC <- res
	})
	w.Send(context.Background())

	res := awaitResult(t, resultC)
	require.NoError(t, res.Err)
}

func mustMapState(t *testing.T, om *objectmap.MemMap, objectNo uint64) objectmap.State {
	t.Helper()
	if om.MayExist(context.Background(), objectNo) {
		return objectmap.StateExists
	}
	return objectmap.StateNonexistent
}

func TestWriteGuardFailureParentGoneRetriesWithoutCopyUp(t *testing.T) {
	img, _, om, pool := newTestImage(t, 4096)
	om.Set(0, objectmap.StateExists) // avoid PRE issuing a redundant update for this check
	img.Overlap = fakeOverlap{bytes: 4096}
	img.Parent = &fakeParentImage{pool: pool, data: nil}

	resultC := make(chan store.Result, 1)
	w := NewWrite(img, "obj-0", 0, 0, make([]byte, 4096), store.SnapContext{Seq: 1}, func(res store.Result) {
		resultC <- res
	})
	// has_parent() is true at construction (overlap 4096), so the write is
	// sent with the guard assertion and fails with ENOENT against the
	// absent head object. The overlap drops to 0 before Send, so
	// handleWriteGuard finds no parent contribution and re-issues the
	// write, which now takes the unguarded full-object path and succeeds
	// without a copy-up.
	img.Overlap = fakeOverlap{bytes: 0}
	w.Send(context.Background())

	res := awaitResult(t, resultC)
	require.NoError(t, res.Err)
	_, coalescing := img.Copyup.StatsFor(0)
	assert.False(t, coalescing)
}
