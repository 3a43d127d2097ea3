// Package lockset holds the read/write locks shared by an image's
// collaborators. Acquisition order, when more than one lock is held, is
// always Snap -> Parent -> ObjectMap; the copy-up table has no lock here
// because it is owned by golang.org/x/sync/singleflight (see the copyup
// package) which is already safe for concurrent use.
package lockset

import "sync"

// LockSet groups the three read/write locks that guard an ImageContext's
// mutable fields. None of these locks may be held across a call into the
// object-store client or the object map's async update path — every
// method here returns a guard the caller releases before making such a
// call.
type LockSet struct {
	Snap      sync.RWMutex
	Parent    sync.RWMutex
	ObjectMap sync.RWMutex
}

// SnapParentGuard is held while reading fields protected by Snap and/or
// Parent. Acquired in Snap -> Parent order, released in the reverse order.
type SnapParentGuard struct {
	ls *LockSet
}

// RLockSnapParent acquires both locks for read and returns a guard.
func (ls *LockSet) RLockSnapParent() SnapParentGuard {
	ls.Snap.RLock()
	ls.Parent.RLock()
	return SnapParentGuard{ls: ls}
}

// RUnlock releases both locks in reverse acquisition order.
func (g SnapParentGuard) RUnlock() {
	g.ls.Parent.RUnlock()
	g.ls.Snap.RUnlock()
}

// SnapGuard is held while reading fields protected only by Snap.
type SnapGuard struct {
	ls *LockSet
}

// RLockSnap acquires the snap lock for read.
func (ls *LockSet) RLockSnap() SnapGuard {
	ls.Snap.RLock()
	return SnapGuard{ls: ls}
}

// RUnlock releases the snap lock.
func (g SnapGuard) RUnlock() {
	g.ls.Snap.RUnlock()
}
