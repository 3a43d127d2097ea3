package parent

import (
	"context"
	"errors"
	"testing"

	"github.com/in-han/objimage/image/extent"
	"github.com/in-han/objimage/image/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOverlap struct {
	bytes int64
	err   error
}

func (f fakeOverlap) GetParentOverlap(ctx context.Context, snapID uint64) (int64, error) {
	return f.bytes, f.err
}

func TestComputeNoOverlap(t *testing.T) {
	exists, extents, err := Compute(context.Background(), fakeOverlap{bytes: 0}, layout.SimpleStriper{ObjectSize: 4096}, Request{
		ObjectNo: 0, Offset: 0, Length: 4096,
	})
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, extents)
}

func TestComputeFullOverlap(t *testing.T) {
	exists, extents, err := Compute(context.Background(), fakeOverlap{bytes: 1 << 30}, layout.SimpleStriper{ObjectSize: 4096}, Request{
		ObjectNo: 2, Offset: 0, Length: 4096,
	})
	require.NoError(t, err)
	assert.True(t, exists)
	require.Len(t, extents, 1)
	assert.Equal(t, extent.Extent{Offset: 2 * 4096, Length: 4096}, extents[0])
}

func TestComputePrunedOverlap(t *testing.T) {
	// Object 1 spans image bytes [4096, 8192). Overlap of 6000 bytes means
	// only the first 1904 bytes of this object are parent-backed.
	exists, extents, err := Compute(context.Background(), fakeOverlap{bytes: 6000}, layout.SimpleStriper{ObjectSize: 4096}, Request{
		ObjectNo: 1, Offset: 0, Length: 4096,
	})
	require.NoError(t, err)
	assert.True(t, exists)
	require.Len(t, extents, 1)
	assert.Equal(t, int64(4096), extents[0].Offset)
	assert.Equal(t, int64(1904), extents[0].Length)
}

func TestComputeOverlapQueryFailureIsNotFatal(t *testing.T) {
	exists, extents, err := Compute(context.Background(), fakeOverlap{err: errors.New("boom")}, layout.SimpleStriper{ObjectSize: 4096}, Request{
		ObjectNo: 0, Offset: 0, Length: 4096,
	})
	require.Error(t, err)
	assert.False(t, exists)
	assert.Nil(t, extents)
}

func TestComputeNilCollaboratorsYieldNoParent(t *testing.T) {
	exists, extents, err := Compute(context.Background(), nil, layout.SimpleStriper{ObjectSize: 4096}, Request{Length: 4096})
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, extents)

	exists, extents, err = Compute(context.Background(), fakeOverlap{bytes: 100}, nil, Request{Length: 4096})
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, extents)
}
