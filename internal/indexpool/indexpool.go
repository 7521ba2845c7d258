// Package indexpool implements the Indexer pool stage (spec §4.2, component
// B): a fixed number of parallel workers drain the FileSyncEvent queue,
// tokenize changed files, and emit IndexUpdateRequests toward the Index
// actor. The Index actor itself stays single-threaded; this is the only
// stage that parallelizes, because file reads — not map mutation — are what
// dominate latency on a cold cache (spec §4.2 "Why parallel").
package indexpool

import (
	"context"
	"os"

	"github.com/sourcegraph/conc/pool"

	"github.com/arashk/dirdex/internal/genstate"
	"github.com/arashk/dirdex/internal/model"
	"github.com/arashk/dirdex/internal/tokenize"
)

// DefaultWorkers is the recommended worker count from spec §4.2.
const DefaultWorkers = 4

// DefaultMaxFileSize is the hard-coded per-file cap from spec §4.2/§6.
const DefaultMaxFileSize = 10 * 1024 * 1024

// Config configures one Indexer pool.
type Config struct {
	Workers     int
	MaxFileSize int64
	Mode        tokenize.Mode
}

// DefaultConfig returns the spec-recommended defaults.
func DefaultConfig(mode tokenize.Mode) Config {
	return Config{
		Workers:     DefaultWorkers,
		MaxFileSize: DefaultMaxFileSize,
		Mode:        mode,
	}
}

// Run drains events until it is closed or ctx is cancelled, emitting one
// IndexUpdateRequest per handled CREATE/MODIFY/DELETE onto updates. It
// returns once events is closed and every in-flight file has been
// processed, or once ctx is cancelled.
func Run(ctx context.Context, cfg Config, gen *genstate.Generation, events <-chan model.FileSyncEvent, updates chan<- model.IndexUpdateRequest) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	p := pool.New().WithMaxGoroutines(workers)

	for {
		select {
		case <-ctx.Done():
			p.Wait()
			return
		case ev, ok := <-events:
			if !ok {
				p.Wait()
				return
			}
			ev := ev
			p.Go(func() {
				handle(ctx, cfg, gen, ev, updates)
			})
		}
	}
}

// handle processes one FileSyncEvent per spec §4.2. I/O failures are
// swallowed for this event; no IndexUpdateRequest is emitted when that
// happens, matching the "Failure policy" in spec §4.2.
func handle(ctx context.Context, cfg Config, gen *genstate.Generation, ev model.FileSyncEvent, updates chan<- model.IndexUpdateRequest) {
	if ev.Type == model.EventDelete {
		send(ctx, updates, model.RemoveFile{T: ev.T, FA: ev.FA})
		return
	}

	info, err := os.Stat(ev.FA.Path)
	if err != nil {
		return // vanished between the event and the read; drop silently
	}
	if !info.Mode().IsRegular() {
		return
	}
	if info.Size() > cfg.MaxFileSize {
		return
	}

	content, err := os.ReadFile(ev.FA.Path)
	if err != nil {
		return // permission denied, vanished mid-read, etc.
	}

	tokenSet := tokenize.Tokens(cfg.Mode, string(content))
	tokens := make(map[*model.Token]struct{}, len(tokenSet))
	for text := range tokenSet {
		tokens[gen.Tokens.Intern(text)] = struct{}{}
	}

	send(ctx, updates, model.UpdateFileContent{T: ev.T, FA: ev.FA, Tokens: tokens})
}

func send(ctx context.Context, updates chan<- model.IndexUpdateRequest, req model.IndexUpdateRequest) {
	select {
	case updates <- req:
	case <-ctx.Done():
	}
}
