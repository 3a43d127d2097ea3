// Package copyup implements the copy-up coalescer (spec component B): for
// any (image, object index), at most one copy-up job is ever in flight,
// and every requester that needs the result — whether it started the job
// or arrived while one was already running — is notified when it
// completes.
//
// The one-job-per-key table from the spec is, in Go, exactly what
// golang.org/x/sync/singleflight already provides; the wrapper here turns
// its blocking Do into the spec's attach-or-fire-and-forget dispatch and
// runs the actual copy-up job (an external collaborator: it reads the
// parent extents and writes the materialized data into the head object)
// inside the shared call.
package copyup

import (
	"context"
	"strconv"
	"sync"

	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/store"
	"github.com/in-han/objimage/image/workqueue"
	"golang.org/x/sync/singleflight"
)

// Runner performs the actual copy-up: materializing parentExtents into the
// head object identified by objectNo, plus any buffered mutation ops
// supplied by whichever request first triggered the job — spec §4.2's "the
// CopyUpJob... writes the materialized data plus any buffered mutations
// into the head object." It is the spec's external CopyUpJob collaborator.
// Only the first caller's ops for a given key are used; a request that
// merely attaches to an already-running job has no influence over what the
// job writes.
type Runner func(ctx context.Context, objectNo uint64, extents []extent.Extent, ops []store.Op) store.Result

// Dependent is notified when the copy-up job for the object it attached
// to completes.
type Dependent interface {
	OnCopyUpComplete(ctx context.Context, result store.Result)
}

// DependentFunc adapts a function to a Dependent.
type DependentFunc func(ctx context.Context, result store.Result)

// OnCopyUpComplete implements Dependent.
func (f DependentFunc) OnCopyUpComplete(ctx context.Context, result store.Result) {
	f(ctx, result)
}

// Stats reports coalescing activity for a single object index, for
// observability only; it is never consulted by the state machines.
type Stats struct {
	Dependents int
	StartedBy  string // "read" or "write"
}

// Coalescer is the per-image copy-up table.
type Coalescer struct {
	group singleflight.Group
	run   Runner
	queue workqueue.Queue

	mu    sync.Mutex
	stats map[uint64]*Stats
}

// New returns a Coalescer that executes copy-up jobs with run and
// dispatches dependent notifications through q.
func New(run Runner, q workqueue.Queue) *Coalescer {
	return &Coalescer{
		run:   run,
		queue: q,
		stats: make(map[uint64]*Stats),
	}
}

func key(objectNo uint64) string {
	return strconv.FormatUint(objectNo, 10)
}

// Enqueue implements spec §4.2. attach=false is the read path: it
// opportunistically starts (or finds already running) a copy-up job but
// does not wait for it — the caller already returned its data. attach=true
// is the write path: dep is notified when the job completes, and the
// write cannot proceed until then.
func (c *Coalescer) Enqueue(ctx context.Context, objectNo uint64, extents []extent.Extent, ops []store.Op, dep Dependent, attach bool, startedBy string) {
	c.touchStats(objectNo, attach, startedBy)

	resultC := c.group.DoChan(key(objectNo), func() (interface{}, error) {
		return c.run(ctx, objectNo, extents, ops), nil
	})

	c.queue.Queue(ctx, func(ctx context.Context) {
		res := <-resultC
		c.clearStats(objectNo)

		if !attach {
			return
		}

		var r store.Result
		if v, ok := res.Val.(store.Result); ok {
			r = v
		}
		dep.OnCopyUpComplete(ctx, r)
	})
}

func (c *Coalescer) touchStats(objectNo uint64, attach bool, startedBy string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[objectNo]
	if !ok {
		s = &Stats{StartedBy: startedBy}
		c.stats[objectNo] = s
	}
	if attach {
		s.Dependents++
	}
}

func (c *Coalescer) clearStats(objectNo uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stats, objectNo)
}

// StatsFor returns a snapshot of the in-flight job's stats for objectNo,
// or false if no job is currently coalescing for that object.
func (c *Coalescer) StatsFor(objectNo uint64) (Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[objectNo]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}
