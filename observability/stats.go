// Package observability aggregates relay counters and reports process
// self-stats for operators. It has no influence on message delivery.
package observability

import "sync/atomic"

// RelayStats holds process-wide counters, updated lock-free from the
// connection handlers.
type RelayStats struct {
	activeSessions   atomic.Int64
	messagesRelayed  atomic.Uint64
	roomsCreated     atomic.Uint64
	historyWrites    atomic.Uint64
	historyFailures  atomic.Uint64
	rejectedCommands atomic.Uint64
}

func NewRelayStats() *RelayStats {
	return &RelayStats{}
}

func (s *RelayStats) SessionOpened()   { s.activeSessions.Add(1) }
func (s *RelayStats) SessionClosed()   { s.activeSessions.Add(-1) }
func (s *RelayStats) MessageRelayed()  { s.messagesRelayed.Add(1) }
func (s *RelayStats) RoomCreated()     { s.roomsCreated.Add(1) }
func (s *RelayStats) HistoryWrite()    { s.historyWrites.Add(1) }
func (s *RelayStats) HistoryFailure()  { s.historyFailures.Add(1) }
func (s *RelayStats) RejectedCommand() { s.rejectedCommands.Add(1) }

// Snapshot is a consistent-enough copy of the counters for reporting.
type Snapshot struct {
	ActiveSessions   int64
	MessagesRelayed  uint64
	RoomsCreated     uint64
	HistoryWrites    uint64
	HistoryFailures  uint64
	RejectedCommands uint64
}

func (s *RelayStats) Snapshot() Snapshot {
	return Snapshot{
		ActiveSessions:   s.activeSessions.Load(),
		MessagesRelayed:  s.messagesRelayed.Load(),
		RoomsCreated:     s.roomsCreated.Load(),
		HistoryWrites:    s.historyWrites.Load(),
		HistoryFailures:  s.historyFailures.Load(),
		RejectedCommands: s.rejectedCommands.Load(),
	}
}
