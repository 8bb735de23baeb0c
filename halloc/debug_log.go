package halloc

import (
	"golang.org/x/exp/slog"
)

// DebugLogAllAllocations calls logFunc once for every live allocation in the arena.
// Diagnostic only; the visit order follows the handle table, not the ownership tree.
func (a *Arena) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, handle Handle, kind Kind, size int)) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	a.handles.Iter(func(h Handle, n *node) bool {
		logFunc(logger, h, n.kind, len(n.payload))
		return false
	})
}
