package indexactor

import "github.com/arashk/dirdex/internal/model"

// UserRequest is the sum type accepted on the Index actor's request queue
// (spec §4.3): Status or Find. Every request declares an OnMessageLoss hook
// invoked if it is discarded without being handled, e.g. because the queue
// was closed by a supervisor restart (spec §5 Message-loss policy).
type UserRequest interface {
	OnMessageLoss()
}

// StatusRequest asks for a StatusResult snapshot.
type StatusRequest struct {
	Result chan<- model.StatusResult
	Lost   func()
}

// OnMessageLoss implements UserRequest.
func (r StatusRequest) OnMessageLoss() {
	if r.Lost != nil {
		r.Lost()
	}
}

// FindRequest asks the actor to stream candidate FileAddresses matching
// Query. Candidates is rendezvous: the actor's producer suspends until the
// consumer pulls, bounding memory (spec §5 Backpressure). Alive is polled
// between emitted candidates; once it returns false the producer stops as
// soon as possible (spec §4.3, §9 design note).
type FindRequest struct {
	Query      string
	Candidates chan<- *model.FileAddress
	Alive      func() bool
	Lost       func()
}

// OnMessageLoss implements UserRequest. A lost FindRequest reports
// cancellation to its consumer by closing the stream with nothing on it.
func (r FindRequest) OnMessageLoss() {
	if r.Lost != nil {
		r.Lost()
	}
	close(r.Candidates)
}
