package copyup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/store"
	"github.com/in-han/objimage/image/workqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAttachFalseFiresOnce(t *testing.T) {
	pool := workqueue.NewPool(2, 4)
	defer pool.Close()

	var calls int32
	var mu sync.Mutex
	block := make(chan struct{})

	c := New(func(ctx context.Context, objectNo uint64, extents []extent.Extent, ops []store.Op) store.Result {
		mu.Lock()
		calls++
		mu.Unlock()
		<-block
		return store.Result{Code: 0}
	}, pool)

	c.Enqueue(context.Background(), 7, nil, nil, nil, false, "read")
	c.Enqueue(context.Background(), 7, nil, nil, nil, false, "read")

	close(block)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, time.Millisecond)
}

type recordingDependent struct {
	mu   sync.Mutex
	got  []store.Result
	done chan struct{}
}

func newRecordingDependent() *recordingDependent {
	return &recordingDependent{done: make(chan struct{})}
}

func (d *recordingDependent) OnCopyUpComplete(ctx context.Context, r store.Result) {
	d.mu.Lock()
	d.got = append(d.got, r)
	d.mu.Unlock()
	close(d.done)
}

func TestEnqueueAttachTrueNotifiesDependent(t *testing.T) {
	pool := workqueue.NewPool(2, 4)
	defer pool.Close()

	c := New(func(ctx context.Context, objectNo uint64, extents []extent.Extent, ops []store.Op) store.Result {
		return store.Result{Code: 0, N: int64(len(extents))}
	}, pool)

	dep := newRecordingDependent()
	c.Enqueue(context.Background(), 3, []extent.Extent{{Offset: 0, Length: 10}}, nil, dep, true, "write")

	select {
	case <-dep.done:
	case <-time.After(time.Second):
		t.Fatal("dependent never notified")
	}

	dep.mu.Lock()
	defer dep.mu.Unlock()
	require.Len(t, dep.got, 1)
	assert.Equal(t, int64(1), dep.got[0].N)
}

func TestEnqueueSecondAttachFindsExistingJob(t *testing.T) {
	pool := workqueue.NewPool(4, 8)
	defer pool.Close()

	var starts int32
	var mu sync.Mutex
	release := make(chan struct{})

	c := New(func(ctx context.Context, objectNo uint64, extents []extent.Extent, ops []store.Op) store.Result {
		mu.Lock()
		starts++
		mu.Unlock()
		<-release
		return store.Result{Code: 0}
	}, pool)

	depA := newRecordingDependent()
	depB := newRecordingDependent()

	c.Enqueue(context.Background(), 1, nil, nil, depA, true, "write")
	c.Enqueue(context.Background(), 1, nil, nil, depB, true, "write")

	stats, ok := c.StatsFor(1)
	require.True(t, ok)
	assert.Equal(t, 2, stats.Dependents)

	close(release)
	<-depA.done
	<-depB.done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), starts)
}
