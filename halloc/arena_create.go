package halloc

import (
	"io"
	"log/slog"
	"strings"

	"github.com/dolthub/swiss"

	"github.com/anvouk/halloc-go/halloc/internal/utils"
	"github.com/anvouk/halloc-go/memutils"
)

// CreateFlags indicate specific arena behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateExternallySynchronized ensures that this arena will not be synchronized
	// internally. The consumer must guarantee it is used from only one thread at a time
	// or is synchronized by some other mechanism, but performance may improve because
	// the internal mutex is not used.
	CreateExternallySynchronized CreateFlags = 1 << iota
	// CreateStrictFree upgrades Free on a chunk-carved allocation (KindChunkedLeaf,
	// KindRawSlice) from the default silent no-op to a fatal contract violation, for
	// callers that want defensive frees surfaced instead of ignored.
	CreateStrictFree
)

var createFlagsMapping = map[CreateFlags]string{
	CreateExternallySynchronized: "CreateExternallySynchronized",
	CreateStrictFree:             "CreateStrictFree",
}

func (f CreateFlags) String() string {
	var parts []string
	for _, flag := range []CreateFlags{CreateExternallySynchronized, CreateStrictFree} {
		if f&flag != 0 {
			parts = append(parts, createFlagsMapping[flag])
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

const (
	// defaultChunkSize is the chunk size used when none is provided via CreateOptions,
	// equal to 64KiB.
	defaultChunkSize int = 1 << 16
	// defaultMaxAlignment caps automatic alignment selection when CreateOptions does not
	// override it.
	defaultMaxAlignment int = 32
)

// CreateOptions contains optional settings when creating an arena
type CreateOptions struct {
	// Flags indicates specific arena behaviors to activate or deactivate
	Flags CreateFlags

	// ChunkSize is the size in bytes of new chunks carved up for KindChunkedLeaf and
	// KindRawSlice allocations. Requests larger than this get a dedicated chunk of their
	// own size. Defaults to 64KiB when 0.
	ChunkSize int

	// MaxAlignment caps the alignment chosen by automatic alignment selection. Must be a
	// power of two. Defaults to 32 when 0.
	MaxAlignment int

	// MaxBytes is the total backing-byte budget for the arena, enforced whenever a chunk
	// or resizable payload is acquired. Attempting to allocate beyond it returns an
	// out-of-memory error. 0 means no limit.
	MaxBytes int

	// Backing supplies raw buffers for chunks and resizable payloads. Defaults to
	// BackingHeap when nil.
	Backing Backing
}

// New creates a new Arena
//
// logger - Debug activity (chunk creation, cascades, defensive frees) is logged here at
// slog.LevelDebug. A nil logger discards everything.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Arena, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	chunkSize := options.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	maxAlignment := options.MaxAlignment
	if maxAlignment <= 0 {
		maxAlignment = defaultMaxAlignment
	}
	err := memutils.CheckPow2(maxAlignment, "CreateOptions.MaxAlignment")
	if err != nil {
		return nil, err
	}

	backing := options.Backing
	if backing == nil {
		backing = BackingHeap()
	}

	useMutex := options.Flags&CreateExternallySynchronized == 0

	a := &Arena{
		logger:  logger,
		backing: backing,
		mutex:   utils.OptionalRWMutex{UseMutex: useMutex},

		chunkSize:    chunkSize,
		maxAlignment: maxAlignment,
		maxBytes:     options.MaxBytes,
		strictFree:   options.Flags&CreateStrictFree != 0,

		handles:    swiss.NewMap[Handle, *node](42),
		nextHandle: 1,
	}
	a.root = &node{
		handle:      rootHandle,
		kind:        KindBranch,
		parent:      NoHandle,
		firstChild:  NoHandle,
		nextSibling: NoHandle,
		prevSibling: NoHandle,
		owner:       NoHandle,
	}

	return a, nil
}
