// Package parent implements the parent-extent resolver (spec component A):
// translating an object's coordinates into parent-image byte ranges under
// the current parent lineage and overlap limit.
package parent

import (
	"context"
	"fmt"

	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/layout"
)

// OverlapQuerier reports how many bytes of the image, as of snapID, are
// backed by the parent. A failed query is treated as "no parent
// contribution," never as a fatal error (see Compute).
type OverlapQuerier interface {
	GetParentOverlap(ctx context.Context, snapID uint64) (int64, error)
}

// Request is the subset of an object request's identity the resolver
// needs.
type Request struct {
	ObjectNo uint64
	SnapID   uint64
	Offset   int64 // object-local
	Length   int64 // object-local
}

// Compute implements spec §4.1's four steps. Callers must hold both the
// snap and parent read locks (or their write-locked equivalents) for the
// duration of this call, and must not still be holding them by the time
// they act on the result against the object store.
//
// A non-nil error means the overlap query itself failed; per the error
// handling design this is not fatal to the request — callers must log it
// and proceed exactly as if exists were false and extents nil, which is
// what this function already returns alongside the error.
//
// striper is nil-safe: a nil striper is treated as "no striping helper
// configured," which yields no parent extents at all.
func Compute(ctx context.Context, overlap OverlapQuerier, striper layout.Striper, req Request) (bool, []extent.Extent, error) {
	if overlap == nil || striper == nil {
		return false, nil, nil
	}

	overlapBytes, err := overlap.GetParentOverlap(ctx, req.SnapID)
	if err != nil {
		return false, nil, fmt.Errorf("parent overlap query failed for snap %d: %w", req.SnapID, err)
	}
	if overlapBytes <= 0 {
		return false, nil, nil
	}

	raw := striper.ExtentToFile(req.ObjectNo, req.Offset, req.Length)
	pruned, total := extent.Prune(raw, overlapBytes)
	return total > 0, pruned, nil
}
