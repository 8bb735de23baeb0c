package halloc

import (
	"log/slog"
	"sync"
)

var (
	defaultOnce  sync.Once
	defaultArena *Arena
)

// Default returns the process-wide arena, creating it on first use. It is an explicit
// convenience for callers that do not want to manage an Arena of their own; the instance
// uses the heap backing, default sizing, internal synchronization and slog.Default().
func Default() *Arena {
	defaultOnce.Do(func() {
		arena, err := New(slog.Default(), CreateOptions{})
		if err != nil {
			panic(err)
		}
		defaultArena = arena
	})

	return defaultArena
}
