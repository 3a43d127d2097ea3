package store

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// ENOENT is the negative-errno code reported in Result.Code for an absent
// object, matching the Linux errno value the original object-store client
// surfaces.
const ENOENT int32 = -2

// ErrObjectNotFound is the sentinel for the object-store's -ENOENT. It
// wraps errdefs.ErrNotFound so callers can use either errors.Is(err,
// ErrObjectNotFound) or errdefs.IsNotFound(err).
var ErrObjectNotFound = fmt.Errorf("object: %w", errdefs.ErrNotFound)

// NotFoundResult builds the canonical -ENOENT Result.
func NotFoundResult() Result {
	return Result{Code: ENOENT, Err: ErrObjectNotFound}
}

// IsNotFound reports whether err is (or wraps) the object-store's
// -ENOENT.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errdefs.IsNotFound(err)
}
