// Package store defines the asynchronous object-store client interface
// consumed by the request engine. It is the Go-idiomatic equivalent of the
// C++ AioCompletion-driven librados client: every method returns
// immediately and reports its outcome through a callback that may run on
// an arbitrary goroutine.
package store

import (
	"context"

	"github.com/in-han/objimage/image/extent"
)

// Result is the outcome of an object-store operation. Code follows the
// spec's negative-errno convention: 0 is success, a positive value on a
// read may report bytes returned, and a negative value is an error code.
// -ENOENT is load-bearing throughout the engine and is always reported as
// Err satisfying errdefs.IsNotFound (see ErrObjectNotFound).
type Result struct {
	N      int64
	Code   int32
	Err    error
	Data   []byte
	Sparse []extent.Extent // populated only for sparse reads: non-zero byte ranges within Data
}

// ReadFlags carries read-time options.
type ReadFlags struct {
	Sparse  bool
	OpFlags uint32
}

// OpKind discriminates the entries of an operation buffer submitted with
// SubmitWrite.
type OpKind int

const (
	OpWrite OpKind = iota
	OpWriteFull
	OpZero
	OpTruncate
	OpRemove
	OpAllocHint
)

// Op is one entry of an operation buffer. AssertExists, when set on any op
// in the buffer, installs the "object must exist" guard assertion: the
// whole buffer fails with ErrObjectNotFound instead of creating the
// object if it is currently absent.
type Op struct {
	Kind         OpKind
	Offset       int64
	Length       int64
	Data         []byte
	AssertExists bool
}

// SnapContext is the (seq, live snapshot ids) pair stamped on every write
// so the store can snapshot-on-write.
type SnapContext struct {
	Seq   uint64
	Snaps []uint64
}

// NoSnap is the sentinel snap id used for reads from the head of the
// image and for all writes.
const NoSnap = ^uint64(0)

// Client is the object-store collaborator. Implementations must invoke cb
// exactly once, from any goroutine, and must not invoke cb synchronously
// while holding any lock the caller might be holding — callers of Client
// never hold an ImageContext lock across these calls.
type Client interface {
	// Read performs a dense or (if flags.Sparse) sparse read of length
	// bytes at off. ErrObjectNotFound is reported via Result.Err when the
	// object does not exist.
	Read(ctx context.Context, oid string, off, length int64, flags ReadFlags, cb func(Result))

	// SubmitWrite submits an operation buffer atomically against oid,
	// stamped with the given snapshot context. At least one op must be
	// present.
	SubmitWrite(ctx context.Context, oid string, ops []Op, snapc SnapContext, cb func(Result))
}
