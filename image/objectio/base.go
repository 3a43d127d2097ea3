// Package objectio implements the per-object request state machines:
// the common lifecycle (construction, parent-extent caching, completion
// dispatch, ENOENT hiding, self-deletion — spec component C), the read
// state machine (component D), and the write state machine with its four
// variants (component E).
package objectio

import (
	"context"

	"github.com/containerd/log"
	"github.com/google/uuid"
	"github.com/in-han/objimage/image"
	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/parent"
	"github.com/in-han/objimage/image/store"
)

// shouldCompleter is the per-variant hook spec §4.3 calls should_complete.
// Read and Write requests each implement it against their own state enum;
// base.complete dispatches into it and owns the hide_enoent and
// self-destruct behavior common to both.
type shouldCompleter interface {
	shouldComplete(ctx context.Context, r store.Result) bool
}

// base is the common lifecycle shared by every object request (spec
// component C). It is embedded by ReadRequest and WriteRequest, which set
// self to themselves so base.complete can dispatch into the variant's
// should_complete hook.
type base struct {
	img *image.Context

	oid      string
	objectNo uint64
	offset   int64
	length   int64
	snapID   uint64

	hideENOENT bool
	cookie     string
	completion func(store.Result)

	parentExtents []extent.Extent

	self shouldCompleter
}

func (b *base) initBase(img *image.Context, oid string, objectNo uint64, offset, length int64, snapID uint64, completion func(store.Result)) {
	b.img = img
	b.oid = oid
	b.objectNo = objectNo
	b.offset = offset
	b.length = length
	b.snapID = snapID
	b.completion = completion
	b.cookie = uuid.New().String()
}

func (b *base) logger(ctx context.Context) *log.Entry {
	return log.G(ctx).WithField(fieldOID, b.oid).
		WithField(fieldObjectNo, b.objectNo).
		WithField(fieldCookie, b.cookie)
}

// hasParent reports whether the cached parent extents (computed at
// construction, at full object size, under snap_lock+parent_lock) are
// non-empty.
func (b *base) hasParent() bool {
	return len(b.parentExtents) > 0
}

// cacheParentExtents implements the construction-time half of spec
// §4.3: compute parent_extents at full object size under both locks.
func (b *base) cacheParentExtents(ctx context.Context) {
	g := b.img.Locks.RLockSnapParent()
	exists, extents, err := parent.Compute(ctx, b.img.Overlap, b.img.Striper(), parent.Request{
		ObjectNo: b.objectNo,
		SnapID:   b.snapID,
		Offset:   0,
		Length:   int64(b.img.Layout.ObjectSize),
	})
	g.RUnlock()

	if err != nil {
		b.logger(ctx).WithError(err).Debug("parent overlap query failed at construction, treating as no parent")
	}
	if exists {
		b.parentExtents = extents
	} else {
		b.parentExtents = nil
	}
}

// refreshParentExtents recomputes parent_extents for the actual
// (object_off, object_len), under both locks, immediately before a parent
// read or copy-up. This is distinct from cacheParentExtents, which always
// uses the full object range.
func (b *base) refreshParentExtents(ctx context.Context, off, length int64) (bool, []extent.Extent, error) {
	g := b.img.Locks.RLockSnapParent()
	defer g.RUnlock()

	return parent.Compute(ctx, b.img.Overlap, b.img.Striper(), parent.Request{
		ObjectNo: b.objectNo,
		SnapID:   b.snapID,
		Offset:   off,
		Length:   length,
	})
}

// complete implements spec §4.3's complete(r): ask the variant's
// should_complete hook whether the request is terminal, and if so apply
// hide_enoent and invoke the one-shot completion. Ownership of the
// request is released here — there is nothing further to hold a
// reference to it, and it becomes eligible for garbage collection once
// completion returns.
func (b *base) complete(ctx context.Context, r store.Result) {
	if !b.self.shouldComplete(ctx, r) {
		return
	}

	if b.hideENOENT && store.IsNotFound(r.Err) {
		r = store.Result{Code: 0}
	}

	b.completion(r)
}
