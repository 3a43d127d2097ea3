// Package objectmap implements the per-object state bitmap used to skip
// I/O against known-absent objects, and to gate copy-up on writes.
package objectmap

import "context"

// State is a per-object bitmap value.
type State uint8

const (
	StateNonexistent State = iota
	StateExists
	StatePending
)

// Custom returns an image-level custom state, escaping the three states
// the core engine itself assigns. n must be >= 3; values below that
// collide with the reserved states above.
func Custom(n uint8) State {
	return State(n)
}

func (s State) String() string {
	switch s {
	case StateNonexistent:
		return "nonexistent"
	case StateExists:
		return "exists"
	case StatePending:
		return "pending"
	default:
		return "custom"
	}
}

// Map is the object-map collaborator. AioUpdate's bool return indicates
// whether cb will fire: an update that is a no-op (new state already
// holds, or expected doesn't match) may resolve synchronously and return
// false without calling cb.
type Map interface {
	// MayExist reports whether objectNo might exist, per the bitmap.
	MayExist(ctx context.Context, objectNo uint64) bool

	// UpdateRequired reports whether transitioning objectNo to newState
	// would actually change the stored value.
	UpdateRequired(ctx context.Context, objectNo uint64, newState State) bool

	// AioUpdate transitions objectNo to newState, optionally gated on the
	// current state matching expected (nil means unconditional). cb is
	// invoked with nil on success or the failure, from a goroutine that is
	// not necessarily the caller's.
	AioUpdate(ctx context.Context, objectNo uint64, newState State, expected *State, cb func(error)) bool
}
