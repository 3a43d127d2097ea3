// Package image holds the data shared by every per-object request
// against one striped image: layout, the lock set guarding lineage and
// object-map fields, the optional parent image, and the collaborators
// (object store, object map, copy-up coalescer, work queue) the request
// engine drives.
package image

import (
	"context"

	"github.com/in-han/objimage/image/copyup"
	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/layout"
	"github.com/in-han/objimage/image/lock"
	"github.com/in-han/objimage/image/lockset"
	"github.com/in-han/objimage/image/objectmap"
	"github.com/in-han/objimage/image/parent"
	"github.com/in-han/objimage/image/store"
	"github.com/in-han/objimage/image/workqueue"
)

// ParentImage is the recursive entry point into a sibling ImageContext's
// read pipeline, used for copy-on-read and copy-up's "read the parent"
// step. It is implemented by the request engine (see package objectio's
// Engine), never by this package.
type ParentImage interface {
	AioRead(ctx context.Context, extents []extent.Extent, buf []byte, flags store.ReadFlags, cb func(store.Result))
}

// Context is an ImageContext: a shared, long-lived handle describing one
// striped image and its collaborators. It is safe for concurrent use; its
// Snaps field and object-map/parent wiring are guarded by Locks.
type Context struct {
	Name   string
	Layout layout.Layout
	Locks  *lockset.LockSet

	// Parent is the parent snapshot image, or nil if this image has no
	// parent. Overlap reports, for a given snapshot id of THIS image, how
	// many leading bytes are backed by Parent — this is a property of
	// this image's own metadata, not of Parent.
	Parent  ParentImage
	Overlap parent.OverlapQuerier

	// Snaps is the ordered sequence of live snapshot identifiers on this
	// image, guarded by Locks.Snap.
	Snaps []uint64

	ObjectMap     objectmap.Map
	ExclusiveLock lock.ExclusiveLock

	Copyup *copyup.Coalescer
	Store  store.Client
	Queue  workqueue.Queue

	CloneCopyOnRead bool
	ReadOnly        bool
	EnableAllocHint bool
}

// Striper exposes the image's layout as a layout.Striper using the
// default unstriped mapping. The request engine resolves parent extents
// only through this helper; Layout.StripeUnit and Layout.StripeCount are
// not consulted.
func (c *Context) Striper() layout.Striper {
	return layout.SimpleStriper{ObjectSize: c.Layout.ObjectSize}
}

// HasParent reports whether c currently has a configured parent image.
// This is a coarse, lock-free check; the authoritative answer for a given
// request is whatever parent.Compute returns under the snap/parent locks.
func (c *Context) HasParent() bool {
	return c.Parent != nil
}

// SnapshotList returns a copy of the live snapshot id list. Callers must
// already hold Locks.Snap for read.
func (c *Context) SnapshotList() []uint64 {
	out := make([]uint64, len(c.Snaps))
	copy(out, c.Snaps)
	return out
}
