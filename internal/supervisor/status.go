package supervisor

import (
	"sync"
	"time"
)

// IndexStateKind enumerates the generation-lifecycle states published on
// the supervisor's status stream (spec §4.4).
type IndexStateKind int

const (
	Initial IndexStateKind = iota
	Initializing
	WatcherStarted
	InitialFileSyncCompleted
	AllFilesDiscovered
	IndexFailed
	Restarting
	Terminated
)

func (k IndexStateKind) String() string {
	switch k {
	case Initial:
		return "initial"
	case Initializing:
		return "initializing"
	case WatcherStarted:
		return "watcher_started"
	case InitialFileSyncCompleted:
		return "initial_file_sync_completed"
	case AllFilesDiscovered:
		return "all_files_discovered"
	case IndexFailed:
		return "index_failed"
	case Restarting:
		return "restarting"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// IndexStateUpdate is one value on the supervisor's broadcast status
// stream (spec §4.4).
type IndexStateUpdate struct {
	Kind   IndexStateKind
	At     time.Time
	Reason error
}

// statusBus is a replay-1, drop-oldest broadcast: every subscriber sees the
// most recent update immediately on subscribing, then every update
// published afterward; a slow subscriber only ever misses updates that were
// superseded before it could read them, never blocks the publisher.
type statusBus struct {
	mu       sync.Mutex
	last     IndexStateUpdate
	subs     map[chan IndexStateUpdate]struct{}
	done     bool
}

func newStatusBus() *statusBus {
	return &statusBus{
		last: IndexStateUpdate{Kind: Initial, At: time.Now()},
		subs: make(map[chan IndexStateUpdate]struct{}),
	}
}

func (b *statusBus) publish(u IndexStateUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.last = u
	for ch := range b.subs {
		b.deliver(ch, u)
	}
	if u.Kind == Terminated {
		b.done = true
		for ch := range b.subs {
			close(ch)
		}
		b.subs = nil
	}
}

// deliver drop-the-oldest: if the subscriber hasn't drained the previous
// value yet, discard it and send the new one in its place.
func (b *statusBus) deliver(ch chan IndexStateUpdate, u IndexStateUpdate) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}

// Subscribe returns a channel that immediately receives the last published
// update, then every subsequent one, closing once Terminated is published.
func (b *statusBus) Subscribe() <-chan IndexStateUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan IndexStateUpdate, 1)
	if b.done {
		ch <- b.last
		close(ch)
		return ch
	}
	ch <- b.last
	b.subs[ch] = struct{}{}
	return ch
}
