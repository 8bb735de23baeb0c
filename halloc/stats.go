package halloc

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"golang.org/x/exp/slices"

	"github.com/anvouk/halloc-go/memutils"
)

// AddStatistics sums the arena's usage counters into the statistics currently present
// in the provided memutils.Statistics object.
func (a *Arena) AddStatistics(stats *memutils.Statistics) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	a.addNodeStatistics(a.root, stats)
	a.handles.Iter(func(h Handle, n *node) bool {
		a.addNodeStatistics(n, stats)
		return false
	})
}

// AddDetailedStatistics sums the arena's usage counters, allocation size extremes and
// unused-range information into the provided memutils.DetailedStatistics object.
func (a *Arena) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	a.addDetailedStatisticsUnlocked(stats)
}

func (a *Arena) addDetailedStatisticsUnlocked(stats *memutils.DetailedStatistics) {
	a.addNodeDetailedStatistics(a.root, stats)
	a.handles.Iter(func(h Handle, n *node) bool {
		a.addNodeDetailedStatistics(n, stats)
		return false
	})
}

func (a *Arena) addNodeStatistics(n *node, stats *memutils.Statistics) {
	for c := n.chunks; c != nil; c = c.next {
		stats.ChunkCount++
		stats.ChunkBytes += len(c.buf)
	}

	if n.handle == rootHandle {
		return
	}

	// resizable payloads are dedicated backing buffers; carved payloads are already
	// counted inside their chunk's bytes
	if n.kind.Resizable() {
		stats.ChunkCount++
		stats.ChunkBytes += len(n.payload)
	}
	stats.AllocationCount++
	stats.AllocationBytes += len(n.payload)
}

func (a *Arena) addNodeDetailedStatistics(n *node, stats *memutils.DetailedStatistics) {
	for c := n.chunks; c != nil; c = c.next {
		stats.ChunkCount++
		stats.ChunkBytes += len(c.buf)
		if c.dataLeft > 0 {
			stats.AddUnusedRange(c.dataLeft)
		}
	}

	if n.handle == rootHandle {
		return
	}

	if n.kind.Resizable() {
		stats.ChunkCount++
		stats.ChunkBytes += len(n.payload)
	}
	stats.AddAllocation(len(n.payload))
}

// BuildStatsString returns a JSON snapshot of the arena. When detailed is true it
// includes the full ownership tree, per-branch chunk maps and carved-handle lists;
// otherwise only the totals.
func (a *Arena) BuildStatsString(detailed bool) string {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	var stats memutils.DetailedStatistics
	stats.Clear()
	a.addDetailedStatisticsUnlocked(&stats)

	totals := obj.Name("Total").Object()
	stats.PrintJson(totals)
	totals.End()

	obj.Name("Allocations").Int(a.allocations)
	obj.Name("Frees").Int(a.frees)
	obj.Name("AllocatedBytes").Int(a.allocatedBytes)

	if detailed {
		a.printChunkMap(&obj, a.root)

		roots := obj.Name("Roots").Array()
		for c := a.root.firstChild; c != NoHandle; {
			child := a.mustNode(c)
			a.printSubtree(&roots, child)
			c = child.nextSibling
		}
		roots.End()
	}

	obj.End()
	return string(writer.Bytes())
}

func (a *Arena) printSubtree(arr *jwriter.ArrayState, n *node) {
	obj := arr.Object()

	obj.Name("Handle").Int(int(n.handle))
	obj.Name("Kind").String(n.kind.String())
	obj.Name("Size").Int(len(n.payload))

	a.printChunkMap(&obj, n)

	if n.firstChild != NoHandle {
		children := obj.Name("Children").Array()
		for c := n.firstChild; c != NoHandle; {
			child := a.mustNode(c)
			a.printSubtree(&children, child)
			c = child.nextSibling
		}
		children.End()
	}

	obj.End()
}

func (a *Arena) printChunkMap(obj *jwriter.ObjectState, n *node) {
	if n.chunks != nil {
		chunks := obj.Name("Chunks").Array()
		for c := n.chunks; c != nil; c = c.next {
			chunkObj := chunks.Object()
			chunkObj.Name("TotalBytes").Int(len(c.buf))
			chunkObj.Name("UnusedBytes").Int(c.dataLeft)
			chunkObj.Name("Allocations").Int(c.allocCount)
			chunkObj.End()
		}
		chunks.End()
	}

	if len(n.carved) > 0 {
		ordered := slices.Clone(n.carved)
		slices.Sort(ordered)

		carved := obj.Name("Carved").Array()
		for _, h := range ordered {
			carved.Int(int(h))
		}
		carved.End()
	}
}
