package objectio

import (
	"context"
	"fmt"
	"sync"

	"github.com/in-han/objimage/image"
	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/store"
)

// Engine is the per-image entry point: it submits the factory-constructed
// requests in this package, and implements image.ParentImage so that an
// image with its own parent can be recursed into from a child's read-guard
// or copy-up path.
//
// The image-level request splitter that maps an application-facing
// read/write into per-object requests is spec'd as an external
// collaborator (§1); AioRead below is the one place this package needs a
// minimal version of it, to turn the parent-image-coordinate extents a
// child hands it back into per-object ReadRequests against this image.
type Engine struct {
	Img *image.Context
}

// NewEngine returns an Engine driving img.
func NewEngine(img *image.Context) *Engine {
	return &Engine{Img: img}
}

// ObjectName derives the object id for objectNo the way this package's
// demo wiring and AioRead recursion both use: an opaque, image-scoped
// name, not a claim about any particular wire format.
func ObjectName(imageName string, objectNo uint64) string {
	return fmt.Sprintf("%s.%016x", imageName, objectNo)
}

// AioRead implements image.ParentImage. extents are in this image's
// global byte coordinates (as computed by a child's parent-extent
// resolver); it splits them at this image's object boundaries, issues one
// ReadRequest per resulting piece, and assembles the results into buf
// before invoking cb once.
func (e *Engine) AioRead(ctx context.Context, extents []extent.Extent, buf []byte, flags store.ReadFlags, cb func(store.Result)) {
	objSize := int64(e.Img.Layout.ObjectSize)

	type piece struct {
		req    *ReadRequest
		bufOff int64
		length int64
	}
	var pieces []piece
	var bufOff int64

	for _, ext := range extents {
		remaining := ext.Length
		pos := ext.Offset
		for remaining > 0 {
			objectNo := uint64(pos / objSize)
			objectOff := pos % objSize
			n := objSize - objectOff
			if n > remaining {
				n = remaining
			}

			oid := ObjectName(e.Img.Name, objectNo)
			req := NewRead(e.Img, oid, objectNo, objectOff, n, store.NoSnap, flags.Sparse, flags.OpFlags, nil)
			pieces = append(pieces, piece{req: req, bufOff: bufOff, length: n})

			bufOff += n
			pos += n
			remaining -= n
		}
	}

	total := bufOff
	if len(pieces) == 0 {
		cb(store.Result{Code: 0})
		return
	}

	var (
		mu      sync.Mutex
		pending = len(pieces)
		failed  error
	)
	for i := range pieces {
		p := pieces[i]
		p.req.completion = func(res store.Result) {
			mu.Lock()
			if res.Err != nil && failed == nil && !store.IsNotFound(res.Err) {
				failed = res.Err
			}
			if res.N > 0 && len(res.Data) > 0 {
				copy(buf[p.bufOff:p.bufOff+p.length], res.Data)
			}
			pending--
			done := pending == 0
			mu.Unlock()

			if !done {
				return
			}
			if failed != nil {
				cb(store.Result{Code: -1, Err: failed})
				return
			}
			cb(store.Result{N: total, Code: 0, Data: buf[:total]})
		}
		p.req.Send(ctx)
	}
}
