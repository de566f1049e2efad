package comms

import (
	"sort"
	"sync"

	"github.com/sdnbridge/bridged/pkg/metrics"
	"github.com/sdnbridge/bridged/pkg/types"
)

// pathCache holds the inter-domain path instructions last received from the
// root, one record per host pair. The first segment of a record is the
// primary, the remainder alternates. The cache is what lets a reconnecting
// root recover state without persistent storage, and what egress/ingress
// changes patch in place.
type pathCache struct {
	mu      sync.Mutex
	records map[types.HostPairKey][]types.PathSegment
}

func newPathCache() *pathCache {
	return &pathCache{records: make(map[types.HostPairKey][]types.PathSegment)}
}

// apply updates the cache from a root instruction. The action of the first
// segment decides: delete removes the whole record, add replaces it
// wholesale. Unknown actions report false.
func (c *pathCache) apply(key types.HostPairKey, segments []types.PathSegment) bool {
	if len(segments) == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch segments[0].Action {
	case types.SegmentActionDelete:
		delete(c.records, key)
	case types.SegmentActionAdd:
		segs := make([]types.PathSegment, len(segments))
		copy(segs, segments)
		c.records[key] = segs
	default:
		return false
	}
	metrics.PathRecords.Set(float64(len(c.records)))
	return true
}

// swapEgress moves the record's egress to newEgress by swapping the egress
// of the primary with the segment currently holding newEgress. Reports false
// when the key is untracked or no segment matches.
func (c *pathCache) swapEgress(key types.HostPairKey, newEgress types.PortRef) ([]types.PathSegment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	segs, ok := c.records[key]
	if !ok || len(segs) == 0 {
		return nil, false
	}

	alt := -1
	for i := range segs {
		if segs[i].Out == newEgress {
			alt = i
			break
		}
	}
	if alt < 0 {
		return nil, false
	}

	oldEgress := segs[0].Out
	segs[0].Out = newEgress
	segs[alt].Out = oldEgress

	return cloneSegments(segs), true
}

// swapIngress moves the record's ingress to newIngress the same way. For
// transit segments (oldEgress non-nil) whose egress also moved, the egress
// pair is swapped too, preserving ports where possible.
func (c *pathCache) swapIngress(key types.HostPairKey, oldIngress, newIngress types.PortRef, oldEgress, newEgress *types.PortRef) ([]types.PathSegment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	segs, ok := c.records[key]
	if !ok || len(segs) == 0 {
		return nil, false
	}

	alt := -1
	for i := range segs {
		if segs[i].In == newIngress {
			alt = i
			break
		}
	}
	if alt < 0 {
		return nil, false
	}

	segs[0].In = newIngress
	segs[alt].In = oldIngress

	if oldEgress != nil && newEgress != nil && *oldEgress != *newEgress {
		segs[0].Out = *newEgress
		segs[alt].Out = *oldEgress
	}

	return cloneSegments(segs), true
}

// snapshot returns a stable copy of every record, ordered by key
func (c *pathCache) snapshot() []types.InterDomainPathRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.InterDomainPathRecord, 0, len(c.records))
	for key, segs := range c.records {
		out = append(out, types.InterDomainPathRecord{Key: key, Segments: cloneSegments(segs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Src == out[j].Key.Src {
			return out[i].Key.Dst < out[j].Key.Dst
		}
		return out[i].Key.Src < out[j].Key.Src
	})
	return out
}

// get returns a copy of one record
func (c *pathCache) get(key types.HostPairKey) ([]types.PathSegment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	segs, ok := c.records[key]
	if !ok {
		return nil, false
	}
	return cloneSegments(segs), true
}

func (c *pathCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func cloneSegments(segs []types.PathSegment) []types.PathSegment {
	out := make([]types.PathSegment, len(segs))
	copy(out, segs)
	return out
}
