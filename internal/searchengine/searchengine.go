// Package searchengine implements the Search engine (spec §4.5, component
// E): the stable, cancellation-safe query surface callers use regardless of
// which supervisor generation happens to be running. It performs two-phase
// search — an approximate in-memory candidate stream from the Index actor,
// re-verified line by line against the file on disk — so that false
// positives admitted by the candidate heuristics (trigram reordering, word
// suffix/prefix matches) never reach a caller (spec §9 "Two-phase search").
package searchengine

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/arashk/dirdex/internal/model"
	"github.com/arashk/dirdex/internal/supervisor"
)

// Match is one verified hit: a line in a candidate file that actually
// contains the query.
type Match struct {
	Path   string
	LineNo int // 1-based
	Line   string
}

// Warning values sent on Find's warnings channel by the stale-result guard.
const (
	WarnIncomplete = "results may be incomplete"
	WarnChanged    = "directory changed during search"
)

// Engine is the Search engine. It holds no state of its own beyond a handle
// to the supervisor whose current generation it queries.
type Engine struct {
	sup *supervisor.Supervisor
}

// New creates a Search engine over sup.
func New(sup *supervisor.Supervisor) *Engine {
	return &Engine{sup: sup}
}

// Status proxies to the Index actor, per spec §4.5.
func (e *Engine) Status(ctx context.Context) model.StatusResult {
	return e.sup.Status(ctx)
}

// Find streams verified matches for query. The returned warnings channel
// receives at most one pre-search warning (sent before any match, if the
// index wasn't known-complete when the search started) and at most one
// post-search warning (sent after the last match, just before both channels
// close, if the status changed mid-search); callers should drain both channels and treat the
// search as not fully reliable if either fires (spec §4.5 "Stale-result
// guard"). Cancelling ctx stops the search early.
func (e *Engine) Find(ctx context.Context, query string) (matches <-chan Match, warnings <-chan string) {
	out := make(chan Match)
	warn := make(chan string, 2)

	go e.find(ctx, query, out, warn)

	return out, warn
}

func (e *Engine) find(ctx context.Context, query string, out chan<- Match, warn chan<- string) {
	defer close(out)
	defer close(warn)

	before := e.sup.Status(ctx)
	wasClean := !before.IsBroken && before.InitialSyncTime != nil && before.HandledModifications == before.TotalModifications
	if !wasClean {
		warn <- WarnIncomplete
	}

	candidates, cancel := e.sup.Find(query)
	defer cancel()

streaming:
	for {
		select {
		case <-ctx.Done():
			return
		case fa, ok := <-candidates:
			if !ok {
				break streaming
			}
			if !e.emitFileMatches(ctx, fa.Path, query, out) {
				return
			}
		}
	}

	if wasClean {
		after := e.sup.Status(ctx)
		changed := after.IsBroken != before.IsBroken ||
			after.InitialSyncTime == nil ||
			after.HandledModifications != after.TotalModifications ||
			after.TotalModifications != before.TotalModifications
		if changed {
			warn <- WarnChanged
		}
	}
}

// emitFileMatches opens path and yields every matching line. It returns
// false if ctx was cancelled mid-file and the caller should stop entirely;
// a read error for a single file is not fatal to the search (the file may
// have been removed between candidate generation and verification).
func (e *Engine) emitFileMatches(ctx context.Context, path, query string, out chan<- Match) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !matches(line, query) {
			continue
		}
		select {
		case out <- Match{Path: path, LineNo: lineNo, Line: line}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// matches implements spec §4.5's verification predicate: a case-insensitive
// substring match in both trigram and word mode, so there is nothing
// mode-specific to branch on here. Case folding must match the candidate
// side: both tokenizers lowercase everything they index (spec §3), so a
// case-sensitive check here would silently drop every candidate whose query
// carried any uppercase letters.
func matches(line, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(line), strings.ToLower(query))
}
