package comms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdnbridge/bridged/pkg/types"
)

func port(sw uint64, p uint32) types.PortRef {
	return types.PortRef{Switch: sw, Port: p}
}

func pairKey(src, dst string) types.HostPairKey {
	return types.HostPairKey{Src: src, Dst: dst}
}

func seedCache(t *testing.T, c *pathCache, key types.HostPairKey, segs []types.PathSegment) {
	t.Helper()
	require.True(t, c.apply(key, segs))
}

func TestPathCacheApply(t *testing.T) {
	c := newPathCache()
	key := pairKey("h1", "h2")

	added := []types.PathSegment{
		{In: port(1, 1), Out: port(1, 2), Action: types.SegmentActionAdd},
		{In: port(1, 1), Out: port(1, 3), Action: types.SegmentActionAdd},
	}
	assert.True(t, c.apply(key, added))
	assert.Equal(t, 1, c.len())

	got, ok := c.get(key)
	require.True(t, ok)
	assert.Equal(t, added, got)

	// Re-apply replaces wholesale
	replacement := []types.PathSegment{
		{In: port(2, 1), Out: port(2, 2), Action: types.SegmentActionAdd},
	}
	assert.True(t, c.apply(key, replacement))
	got, ok = c.get(key)
	require.True(t, ok)
	assert.Equal(t, replacement, got)

	// Delete removes the whole record
	assert.True(t, c.apply(key, []types.PathSegment{{Action: types.SegmentActionDelete}}))
	assert.Equal(t, 0, c.len())
	_, ok = c.get(key)
	assert.False(t, ok)
}

func TestPathCacheApplyRejectsUnknownAction(t *testing.T) {
	c := newPathCache()
	key := pairKey("h1", "h2")

	assert.False(t, c.apply(key, nil))
	assert.False(t, c.apply(key, []types.PathSegment{{Action: "modify"}}))
	assert.Equal(t, 0, c.len())
}

// TestPathCacheSwapEgress covers the primary/alternate egress exchange: a
// record [primary(in A, out B), secondary(in C, out D)] asked to egress via D
// must become [primary(in A, out D), secondary(in C, out B)].
func TestPathCacheSwapEgress(t *testing.T) {
	c := newPathCache()
	key := pairKey("h1", "h2")
	portA, portB := port(1, 1), port(1, 2)
	portC, portD := port(2, 1), port(2, 2)
	seedCache(t, c, key, []types.PathSegment{
		{In: portA, Out: portB, Action: types.SegmentActionAdd},
		{In: portC, Out: portD, Action: types.SegmentActionAdd},
	})

	segs, ok := c.swapEgress(key, portD)
	require.True(t, ok)
	require.Len(t, segs, 2)
	assert.Equal(t, portA, segs[0].In)
	assert.Equal(t, portD, segs[0].Out)
	assert.Equal(t, portC, segs[1].In)
	assert.Equal(t, portB, segs[1].Out)

	// The cache itself holds the swapped record now
	got, ok := c.get(key)
	require.True(t, ok)
	assert.Equal(t, segs, got)
}

func TestPathCacheSwapEgressNoMatch(t *testing.T) {
	c := newPathCache()
	key := pairKey("h1", "h2")
	seedCache(t, c, key, []types.PathSegment{
		{In: port(1, 1), Out: port(1, 2), Action: types.SegmentActionAdd},
	})

	_, ok := c.swapEgress(key, port(9, 9))
	assert.False(t, ok, "no alternate carries the requested egress")

	_, ok = c.swapEgress(pairKey("h8", "h9"), port(1, 2))
	assert.False(t, ok, "untracked host pair")
}

func TestPathCacheSwapIngress(t *testing.T) {
	c := newPathCache()
	key := pairKey("h1", "h2")
	inOld, inNew := port(1, 1), port(2, 1)
	seedCache(t, c, key, []types.PathSegment{
		{In: inOld, Out: port(1, 2), Action: types.SegmentActionAdd},
		{In: inNew, Out: port(2, 2), Action: types.SegmentActionAdd},
	})

	segs, ok := c.swapIngress(key, inOld, inNew, nil, nil)
	require.True(t, ok)
	assert.Equal(t, inNew, segs[0].In)
	assert.Equal(t, inOld, segs[1].In)
	// Egresses untouched for edge segments
	assert.Equal(t, port(1, 2), segs[0].Out)
	assert.Equal(t, port(2, 2), segs[1].Out)
}

// TestPathCacheSwapIngressTransit checks that a transit record whose egress
// moved along with the ingress swaps both port pairs.
func TestPathCacheSwapIngressTransit(t *testing.T) {
	c := newPathCache()
	key := pairKey("h1", "h2")
	inOld, inNew := port(1, 1), port(2, 1)
	egOld, egNew := port(1, 2), port(2, 2)
	seedCache(t, c, key, []types.PathSegment{
		{In: inOld, Out: egOld, Action: types.SegmentActionAdd},
		{In: inNew, Out: egNew, Action: types.SegmentActionAdd},
	})

	segs, ok := c.swapIngress(key, inOld, inNew, &egOld, &egNew)
	require.True(t, ok)
	assert.Equal(t, types.PathSegment{In: inNew, Out: egNew, Action: types.SegmentActionAdd}, segs[0])
	assert.Equal(t, types.PathSegment{In: inOld, Out: egOld, Action: types.SegmentActionAdd}, segs[1])
}

func TestPathCacheSwapIngressSameEgress(t *testing.T) {
	c := newPathCache()
	key := pairKey("h1", "h2")
	inOld, inNew := port(1, 1), port(2, 1)
	eg := port(1, 2)
	seedCache(t, c, key, []types.PathSegment{
		{In: inOld, Out: eg, Action: types.SegmentActionAdd},
		{In: inNew, Out: port(2, 2), Action: types.SegmentActionAdd},
	})

	// Identical old/new egress means only the ingress pair moves
	segs, ok := c.swapIngress(key, inOld, inNew, &eg, &eg)
	require.True(t, ok)
	assert.Equal(t, eg, segs[0].Out)
	assert.Equal(t, port(2, 2), segs[1].Out)
}

func TestPathCacheSnapshotOrdered(t *testing.T) {
	c := newPathCache()
	seedCache(t, c, pairKey("h3", "h1"), []types.PathSegment{{In: port(3, 1), Out: port(3, 2), Action: types.SegmentActionAdd}})
	seedCache(t, c, pairKey("h1", "h4"), []types.PathSegment{{In: port(1, 1), Out: port(1, 2), Action: types.SegmentActionAdd}})
	seedCache(t, c, pairKey("h1", "h2"), []types.PathSegment{{In: port(1, 1), Out: port(1, 3), Action: types.SegmentActionAdd}})

	snap := c.snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, pairKey("h1", "h2"), snap[0].Key)
	assert.Equal(t, pairKey("h1", "h4"), snap[1].Key)
	assert.Equal(t, pairKey("h3", "h1"), snap[2].Key)

	// Snapshot records are copies, not views
	snap[0].Segments[0].Out = port(9, 9)
	got, ok := c.get(pairKey("h1", "h2"))
	require.True(t, ok)
	assert.Equal(t, port(1, 3), got[0].Out)
}
