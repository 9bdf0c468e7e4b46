package reactor

import "sync/atomic"

// Stats tracks lifetime connection counters with plain atomics rather than
// a mutex, grounded on shockwave/pkg/shockwave/server/server.go's Stats
// struct, extended with the reactor-specific "rejected" and "timedOut"
// counters §4.E's accept loop and idle-eviction path need.
type Stats struct {
	accepted atomic.Int64
	active   atomic.Int64
	closed   atomic.Int64
	rejected atomic.Int64
	timedOut atomic.Int64
}

func (s *Stats) onAccept() {
	s.accepted.Add(1)
	s.active.Add(1)
	connectionsAccepted.Inc()
	connectionsActive.Inc()
}

func (s *Stats) onClose() {
	s.active.Add(-1)
	s.closed.Add(1)
	connectionsActive.Dec()
}

func (s *Stats) onReject() {
	s.rejected.Add(1)
	connectionsRejected.Inc()
}

func (s *Stats) onTimedOut() {
	s.timedOut.Add(1)
	connectionsTimedOut.Inc()
}

// Snapshot is a point-in-time copy of Stats safe to read without races.
type Snapshot struct {
	Accepted int64
	Active   int64
	Closed   int64
	Rejected int64
	TimedOut int64
}

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		Accepted: s.accepted.Load(),
		Active:   s.active.Load(),
		Closed:   s.closed.Load(),
		Rejected: s.rejected.Load(),
		TimedOut: s.timedOut.Load(),
	}
}
