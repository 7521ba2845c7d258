// Package genstate bundles the state that lives for exactly one supervisor
// generation (spec §3 Lifecycle, §9): the logical clock and the two string
// interners. The Watcher/Sync stage is the sole writer of the clock; the
// interners are written by the watcher (FileAddresses) and the indexer pool
// (Tokens), and by the Index actor, which interns query text into Tokens
// when it looks it up.
package genstate

import (
	"sync/atomic"

	"github.com/arashk/dirdex/internal/intern"
)

// Generation holds everything that must be discarded together when the
// supervisor restarts the pipeline.
type Generation struct {
	clock uint64

	FileAddresses *intern.FileAddresses
	Tokens        *intern.Tokens
}

// New creates the shared state for a fresh generation.
func New() *Generation {
	return &Generation{
		FileAddresses: intern.NewFileAddresses(),
		Tokens:        intern.NewTokens(),
	}
}

// Next atomically increments and returns the logical clock, used by the
// sync stage to timestamp every emitted FileSyncEvent.
func (g *Generation) Next() uint64 {
	return atomic.AddUint64(&g.clock, 1)
}
