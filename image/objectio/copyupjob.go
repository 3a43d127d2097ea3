package objectio

import (
	"context"

	"github.com/in-han/objimage/image"
	"github.com/in-han/objimage/image/copyup"
	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/store"
)

// NewCopyUpRunner returns the copy-up job this package wires into every
// Coalescer it builds. It is the concrete implementation of spec §4.2's
// external CopyUpJob collaborator: read the parent extents, then write the
// materialized bytes plus any buffered mutation ops into the head object in
// a single submission.
func NewCopyUpRunner(img *image.Context) copyup.Runner {
	return func(ctx context.Context, objectNo uint64, extents []extent.Extent, ops []store.Op) store.Result {
		ops = append(materializeOps(ctx, img, objectNo, extents), ops...)
		if len(ops) == 0 {
			return store.Result{Code: 0}
		}
		return submitOpsSync(ctx, img, objectNo, ops)
	}
}

// materializeOps reads extents (in parent-image coordinates) from the
// parent image and turns the result into write ops at the corresponding
// object-local offsets. A read error is treated as "nothing to
// materialize" rather than failing the whole job — the attempted write
// still proceeds against whatever the head object already has, matching
// the error handling policy for parent read failures (spec §7).
func materializeOps(ctx context.Context, img *image.Context, objectNo uint64, extents []extent.Extent) []store.Op {
	if img.Parent == nil || len(extents) == 0 {
		return nil
	}

	buf := make([]byte, extent.TotalBytes(extents))
	done := make(chan store.Result, 1)
	img.Parent.AioRead(ctx, extents, buf, store.ReadFlags{}, func(res store.Result) {
		done <- res
	})
	res := <-done
	if res.Err != nil {
		return nil
	}

	objSize := int64(img.Layout.ObjectSize)
	ops := make([]store.Op, 0, len(extents))
	var bufOff int64
	for _, e := range extents {
		localOff := e.Offset - int64(objectNo)*objSize
		ops = append(ops, store.Op{Kind: store.OpWrite, Offset: localOff, Data: buf[bufOff : bufOff+e.Length]})
		bufOff += e.Length
	}
	return ops
}

func submitOpsSync(ctx context.Context, img *image.Context, objectNo uint64, ops []store.Op) store.Result {
	oid := ObjectName(img.Name, objectNo)
	done := make(chan store.Result, 1)
	img.Store.SubmitWrite(ctx, oid, ops, store.SnapContext{}, func(res store.Result) {
		done <- res
	})
	return <-done
}
