// Package lock defines the exclusive-lock collaborator: at most one
// client at a time owns the image for writing, and the engine only needs
// to ask whether this process is that owner.
package lock

// ExclusiveLock reports ownership of an image's single-writer lock. A nil
// ExclusiveLock means no exclusive-lock feature is configured for the
// image, which the engine treats as "ownership not required."
type ExclusiveLock interface {
	IsOwner() bool
}
