// Package indexactor implements the Index actor (spec §4.3, component C):
// the single-owner state machine holding the forward and reverse inverted
// indexes and the sync-progress counters. One goroutine serializes every
// mutation and query; no locks are needed because nothing else ever touches
// the maps (spec §5 Shared-resource policy, §9 design note "Actor in place
// of shared-memory maps").
package indexactor

import (
	"context"
	"time"

	"github.com/arashk/dirdex/internal/genstate"
	"github.com/arashk/dirdex/internal/model"
	"github.com/arashk/dirdex/internal/tokenize"
)

// Actor owns the forward/reverse maps and the status counters for one
// supervisor generation.
type Actor struct {
	gen  *genstate.Generation
	mode tokenize.Mode

	forward map[*model.FileAddress]map[*model.Token]struct{}
	reverse map[*model.Token]map[*model.FileAddress]struct{}
	fileUpdateTimes map[*model.FileAddress]uint64

	startTime            time.Time
	watcherStartedAt     *time.Time
	allFilesDiscoveredAt *time.Time
	syncCompletedAt      *time.Time
	totalModifications   int
	handledModifications int
	preInitCounter       int

	statusCh  <-chan model.StatusUpdate
	updatesCh <-chan model.IndexUpdateRequest
	requestCh <-chan UserRequest

	observer StateObserver
}

// StateEvent is a generation-timing milestone the actor reports as it
// stamps the corresponding counter, so the supervisor can republish it onto
// its IndexStateUpdate broadcast (spec §2, §4.4).
type StateEvent int

const (
	StateWatcherStarted StateEvent = iota
	StateAllFilesDiscovered
	StateInitialSyncCompleted
)

// StateObserver is invoked synchronously, from inside the actor's single
// goroutine, the first time each milestone is reached.
type StateObserver func(ev StateEvent, at time.Time)

// New creates an Index actor reading from the three queues described in
// spec §2 (status, index-update, user-request). observer may be nil.
func New(gen *genstate.Generation, mode tokenize.Mode, statusCh <-chan model.StatusUpdate, updatesCh <-chan model.IndexUpdateRequest, requestCh <-chan UserRequest, observer StateObserver) *Actor {
	return &Actor{
		gen:             gen,
		mode:            mode,
		forward:         make(map[*model.FileAddress]map[*model.Token]struct{}),
		reverse:         make(map[*model.Token]map[*model.FileAddress]struct{}),
		fileUpdateTimes: make(map[*model.FileAddress]uint64),
		startTime:       time.Now(),
		statusCh:        statusCh,
		updatesCh:       updatesCh,
		requestCh:       requestCh,
		observer:        observer,
	}
}

// Run is the actor's select loop. On each iteration it processes exactly
// one message from whichever of the three inputs is ready (spec §4.3). It
// returns when ctx is cancelled, draining nothing further — in-flight
// requests not yet delivered are the supervisor's responsibility to report
// as lost.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case su, ok := <-a.statusCh:
			if !ok {
				return
			}
			a.applyStatus(su)
		case upd, ok := <-a.updatesCh:
			if !ok {
				return
			}
			a.applyUpdate(upd)
		case req, ok := <-a.requestCh:
			if !ok {
				return
			}
			a.handleRequest(ctx, req)
		}
	}
}

func (a *Actor) applyStatus(su model.StatusUpdate) {
	switch su.Kind {
	case model.StatusFileUpdated:
		a.totalModifications++
	case model.StatusWatcherStarted:
		if a.watcherStartedAt == nil {
			t := su.At
			a.watcherStartedAt = &t
			a.notify(StateWatcherStarted, t)
		}
	case model.StatusAllFilesDiscovered:
		if a.allFilesDiscoveredAt == nil {
			t := su.At
			a.allFilesDiscoveredAt = &t
			a.notify(StateAllFilesDiscovered, t)
			// handled may already equal total if every update for this
			// generation was applied before this status was processed
			// (the two channels are drained in no fixed relative order).
			a.maybeStampSyncCompleted()
		}
	case model.StatusWatcherDiscoveredFileDuringInit:
		a.preInitCounter++
	}
}

func (a *Actor) applyUpdate(req model.IndexUpdateRequest) {
	switch r := req.(type) {
	case model.UpdateFileContent:
		a.applyUpdateFileContent(r)
	case model.RemoveFile:
		a.applyRemoveFile(r)
	}
}

// applyUpdateFileContent implements the update algorithm of spec §4.3.
func (a *Actor) applyUpdateFileContent(r model.UpdateFileContent) {
	last := a.fileUpdateTimes[r.FA]
	if r.T <= last {
		return // out-of-order indexer result; discard silently
	}
	a.fileUpdateTimes[r.FA] = r.T

	a.detachFromReverse(r.FA)
	a.forward[r.FA] = r.Tokens
	for tok := range r.Tokens {
		bucket, ok := a.reverse[tok]
		if !ok {
			bucket = make(map[*model.FileAddress]struct{})
			a.reverse[tok] = bucket
		}
		bucket[r.FA] = struct{}{}
	}

	a.handledModifications++
	a.maybeStampSyncCompleted()
}

// applyRemoveFile implements steps 1-4 of spec §4.3 plus deleting forward[fa].
//
// r.FA is kept interned (not Forgotten) and fileUpdateTimes[r.FA] is kept
// rather than cleared: this generation must keep handing out the same
// *model.FileAddress for this path so that a later recreate/modify of the
// same path is recognized as the same file identity rather than minting a
// second pointer with its own out-of-order counter reset to zero (spec §8
// "Out-of-order absorption"). A fresh generation after a restart starts
// with empty pools, so nothing here outlives its generation.
func (a *Actor) applyRemoveFile(r model.RemoveFile) {
	last := a.fileUpdateTimes[r.FA]
	if r.T <= last {
		return
	}
	a.fileUpdateTimes[r.FA] = r.T

	a.detachFromReverse(r.FA)
	delete(a.forward, r.FA)

	a.handledModifications++
	a.maybeStampSyncCompleted()
}

// detachFromReverse removes fa from every reverse bucket it currently
// belongs to, pruning buckets that become empty (spec §3 "empty sets are
// permitted but may be pruned"). It deliberately does not prune the emptied
// bucket's token out of the interner: a worker goroutine concurrently
// tokenizing another file may already hold that exact *model.Token pointer
// on its way to the actor's update queue, and reclaiming it here would let
// that in-flight update recreate reverse[tok] keyed by a pointer no later
// query's fresh Intern(tok.Text) could ever reach again (spec §8 "Query
// monotonicity"). The token stays interned, unreferenced, for the rest of
// the generation.
func (a *Actor) detachFromReverse(fa *model.FileAddress) {
	for tok := range a.forward[fa] {
		bucket := a.reverse[tok]
		if bucket == nil {
			continue
		}
		delete(bucket, fa)
		if len(bucket) == 0 {
			delete(a.reverse, tok)
		}
	}
}

func (a *Actor) maybeStampSyncCompleted() {
	if a.allFilesDiscoveredAt != nil && a.syncCompletedAt == nil && a.handledModifications == a.totalModifications {
		t := time.Now()
		a.syncCompletedAt = &t
		a.notify(StateInitialSyncCompleted, t)
	}
}

func (a *Actor) notify(ev StateEvent, at time.Time) {
	if a.observer != nil {
		a.observer(ev, at)
	}
}

func (a *Actor) handleRequest(ctx context.Context, req UserRequest) {
	switch r := req.(type) {
	case StatusRequest:
		select {
		case r.Result <- a.statusSnapshot():
		case <-ctx.Done():
		}
	case FindRequest:
		candidates := a.candidates(r.Query, r.Alive)
		go streamCandidates(ctx, candidates, r)
	}
}

// statusSnapshot builds the StatusResult for the current generation (spec
// §4.3 StatusRequest response). IsBroken is always false here; the
// supervisor substitutes model.Broken() between generations.
func (a *Actor) statusSnapshot() model.StatusResult {
	total := a.totalModifications
	if a.allFilesDiscoveredAt == nil && a.preInitCounter > total {
		total = a.preInitCounter
	}

	res := model.StatusResult{
		IndexedFiles:         len(a.forward),
		KnownTokens:          len(a.reverse),
		HandledModifications: a.handledModifications,
		TotalModifications:   total,
	}
	if a.watcherStartedAt != nil {
		d := a.watcherStartedAt.Sub(a.startTime)
		res.WatcherStartTime = &d
	}
	if a.syncCompletedAt != nil {
		d := a.syncCompletedAt.Sub(a.startTime)
		res.InitialSyncTime = &d
	}
	return res
}

func streamCandidates(ctx context.Context, candidates []*model.FileAddress, r FindRequest) {
	defer close(r.Candidates)
	for _, fa := range candidates {
		if r.Alive != nil && !r.Alive() {
			return
		}
		select {
		case r.Candidates <- fa:
		case <-ctx.Done():
			return
		}
	}
}
