// Package supervisor implements the resurrecting supervisor (spec §4.4,
// component D): it launches one generation of Watcher/Sync + Indexer pool +
// Index actor as a child scope, restarts it on failure, and exposes a
// stable request channel and a replay-1 status broadcast to callers that
// outlive any single generation.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/arashk/dirdex/internal/genstate"
	"github.com/arashk/dirdex/internal/indexactor"
	"github.com/arashk/dirdex/internal/indexpool"
	"github.com/arashk/dirdex/internal/model"
	"github.com/arashk/dirdex/internal/queue"
	"github.com/arashk/dirdex/internal/tokenize"
	"github.com/arashk/dirdex/internal/watch"
)

// errForcedFailure is the synthetic error reported when ForceFailure is
// called, surfaced through the same IndexFailed path a real watcher error
// would take.
var errForcedFailure = errors.New("supervisor: forced failure")

// Config configures every generation the supervisor launches.
type Config struct {
	Watch     watch.Config
	IndexPool indexpool.Config
	Mode      tokenize.Mode
}

type generation struct {
	requestCh chan indexactor.UserRequest
	done      chan struct{}
}

// Supervisor owns the restart loop described in spec §9 "Supervisor":
// start generation -> await child failure -> publish IndexFailed -> cancel
// siblings -> publish Restarting -> loop; on outer cancellation, publish
// Terminated and exit.
type Supervisor struct {
	cfg Config
	bus *statusBus

	mu        sync.Mutex
	current   *generation
	forceFail chan struct{}
}

// New creates a Supervisor. Call Run to start launching generations.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg, bus: newStatusBus(), forceFail: make(chan struct{}, 1)}
}

// ForceFailure triggers an immediate IndexFailed/Restarting cycle on the
// current generation, as if the watcher had hit a fatal error. It exists so
// operators (the interactive shell's "error" command) can exercise the
// restart path without waiting for a real failure.
func (s *Supervisor) ForceFailure() {
	select {
	case s.forceFail <- struct{}{}:
	default:
	}
}

// Statuses returns a replay-1, drop-oldest subscription to the generation
// lifecycle (spec §4.4). The channel closes after Terminated is published.
func (s *Supervisor) Statuses() <-chan IndexStateUpdate {
	return s.bus.Subscribe()
}

// Submit hands req to the active generation's Index actor, or reports it
// lost immediately if no generation is currently running (spec §5
// Message-loss policy).
func (s *Supervisor) Submit(req indexactor.UserRequest) {
	s.mu.Lock()
	gen := s.current
	s.mu.Unlock()

	if gen == nil {
		req.OnMessageLoss()
		return
	}
	select {
	case gen.requestCh <- req:
	case <-gen.done:
		req.OnMessageLoss()
	}
}

// Status is a convenience wrapper over Submit for the common StatusRequest
// case, returning the broken status (spec §4.4 Broken reporting) if no
// generation is active or ctx is cancelled before a reply arrives.
func (s *Supervisor) Status(ctx context.Context) model.StatusResult {
	result := make(chan model.StatusResult, 1)
	lost := make(chan struct{}, 1)
	s.Submit(indexactor.StatusRequest{
		Result: result,
		Lost:   func() { lost <- struct{}{} },
	})

	select {
	case r := <-result:
		return r
	case <-lost:
		return model.Broken()
	case <-ctx.Done():
		return model.Broken()
	}
}

// Find is a convenience wrapper over Submit for FindRequest, returning a
// candidate stream and a cancel func that clears the request's liveness
// flag, which the caller calls to stop the query early (spec §4.3, §5
// Cancellation).
func (s *Supervisor) Find(query string) (candidates <-chan *model.FileAddress, cancel func()) {
	out := make(chan *model.FileAddress)
	var alive atomic.Bool
	alive.Store(true)
	s.Submit(indexactor.FindRequest{
		Query:      query,
		Candidates: out,
		Alive:      alive.Load,
		Lost:       func() {},
	})
	return out, func() { alive.Store(false) }
}

// Run launches generations until ctx is cancelled. It returns once the
// final Terminated status has been published.
func (s *Supervisor) Run(ctx context.Context) {
	defer s.bus.publish(IndexStateUpdate{Kind: Terminated, At: time.Now()})

	for {
		if ctx.Err() != nil {
			return
		}

		if cancelledDuring := s.runGeneration(ctx); cancelledDuring {
			return
		}
	}
}

// runGeneration runs exactly one generation to completion and returns true
// if the reason it ended was outer cancellation (in which case the caller
// must not start another generation).
func (s *Supervisor) runGeneration(ctx context.Context) (cancelled bool) {
	s.bus.publish(IndexStateUpdate{Kind: Initializing, At: time.Now()})

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen := genstate.New()
	statusQ := queue.NewUnbounded[model.StatusUpdate]()
	eventsQ := queue.NewUnbounded[model.FileSyncEvent]()
	updatesCh := make(chan model.IndexUpdateRequest) // rendezvous-bounded, spec §5
	requestCh := make(chan indexactor.UserRequest)
	doneCh := make(chan struct{})

	observer := func(ev indexactor.StateEvent, at time.Time) {
		switch ev {
		case indexactor.StateWatcherStarted:
			s.bus.publish(IndexStateUpdate{Kind: WatcherStarted, At: at})
		case indexactor.StateAllFilesDiscovered:
			s.bus.publish(IndexStateUpdate{Kind: AllFilesDiscovered, At: at})
		case indexactor.StateInitialSyncCompleted:
			s.bus.publish(IndexStateUpdate{Kind: InitialFileSyncCompleted, At: at})
		}
	}

	actor := indexactor.New(gen, s.cfg.Mode, statusQ.Out, updatesCh, requestCh, observer)
	syncStage := watch.New(s.cfg.Watch, gen, eventsQ.In, statusQ.In)

	s.mu.Lock()
	s.current = &generation{requestCh: requestCh, done: doneCh}
	s.mu.Unlock()

	watchErrCh := make(chan error, 1)
	var wg conc.WaitGroup
	wg.Go(func() {
		watchErrCh <- syncStage.Run(genCtx)
	})
	wg.Go(func() {
		indexpool.Run(genCtx, s.cfg.IndexPool, gen, eventsQ.Out, updatesCh)
	})
	wg.Go(func() {
		actor.Run(genCtx)
		close(doneCh)
	})

	var failErr error
	select {
	case <-ctx.Done():
		cancelled = true
	case err := <-watchErrCh:
		if ctx.Err() != nil {
			cancelled = true
		} else if err != nil {
			failErr = err
		}
	case <-s.forceFail:
		failErr = errForcedFailure
	}

	cancel()
	wg.Wait()
	close(eventsQ.In)
	close(statusQ.In)

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if cancelled {
		return true
	}

	s.bus.publish(IndexStateUpdate{Kind: IndexFailed, At: time.Now(), Reason: failErr})
	s.bus.publish(IndexStateUpdate{Kind: Restarting, At: time.Now()})
	return false
}
