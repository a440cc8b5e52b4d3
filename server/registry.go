package server

import (
	"fmt"
	"log/slog"
	"sync"

	"chat-salas/domain"
	"chat-salas/errors"
	"chat-salas/observability"
	"chat-salas/protocol"
	"chat-salas/repositories"

	"github.com/samber/lo"
)

// Registry owns the two pieces of process-wide mutable state: the name index
// (display name -> session) and the room map. One RWMutex guards both, plus
// every room's member set and every session's current-room pointer, so
// membership and Session.room can never diverge.
//
// Lock ordering: the registry mutex is always taken before a session's write
// mutex (inside Send), never the reverse.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]*Room

	history repositories.IHistoryRepository
	stats   *observability.RelayStats
	log     *slog.Logger
}

func NewRegistry(log *slog.Logger, history repositories.IHistoryRepository, stats *observability.RelayStats) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]*Room),
		history:  history,
		stats:    stats,
		log:      log,
	}
}

// Register claims a display name for the session. The existence check and
// the insert happen under one critical section, so two concurrent
// registrations of the same name cannot both succeed.
func (r *Registry) Register(name string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.sessions[name]; taken {
		return errors.ErrNameTaken
	}
	s.name = name
	r.sessions[name] = s
	r.stats.SessionOpened()
	return nil
}

// Unregister removes the session from its room and from the name index.
// Safe to call for sessions that never completed registration, and safe to
// call more than once.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(s)
	if s.name == "" {
		return
	}
	if current, ok := r.sessions[s.name]; ok && current == s {
		delete(r.sessions, s.name)
		r.stats.SessionClosed()
	}
}

// JoinRoom moves the session into the named room, creating it on demand.
// While holding the write lock it: removes the session from its previous
// room (notifying the remaining members), adds it to the target room, sends
// the OK acknowledgement, replays the room's history oldest-first, and
// finally notifies the room of the arrival.
//
// Holding the lock across the replay is deliberate: Broadcast takes the same
// lock, so no live message can reach the joiner interleaved with replayed
// history.
func (r *Registry) JoinRoom(s *Session, roomName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.room != nil && s.room.name == roomName {
		r.sendOrDrop(s, protocol.CmdOK, "Ya estás en la sala "+roomName)
		return
	}
	r.leaveLocked(s)

	room, ok := r.rooms[roomName]
	if !ok {
		room = newRoom(roomName)
		r.rooms[roomName] = room
		r.stats.RoomCreated()
	}
	room.add(s)
	s.room = room

	r.sendOrDrop(s, protocol.CmdOK, "Unido a la sala "+roomName)
	r.replayLocked(s, roomName)
	r.notifyLocked(room, fmt.Sprintf("[%s] %s se ha unido a la sala.", roomName, s.name))
}

// Leave removes the session from its current room, if any. Leaving while in
// no room is a no-op, not an error.
func (r *Registry) Leave(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(s)
}

// Broadcast delivers the message to every current member of the sender's
// room, sender included, and appends it to the history store best-effort.
// A member whose send fails is closed and left for its own handler to clean
// up; the fan-out continues with the remaining members.
func (r *Registry) Broadcast(sender *Session, message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sender.room == nil {
		return errors.ErrNotInRoom
	}
	room := sender.room
	message.Room = room.name
	line := message.Rendered()

	for _, member := range room.sessions() {
		if err := member.Send(protocol.CmdChat, line); err != nil {
			r.log.Warn("dropping unreachable member",
				"room", room.name, "user", member.name, "error", err)
			member.Close()
		}
	}
	r.stats.MessageRelayed()

	// History is best-effort: a persistence fault is logged, never surfaced
	// to the sender, and never blocks delivery.
	if err := r.history.Append(message); err != nil {
		r.stats.HistoryFailure()
		r.log.Error("history append failed",
			"room", room.name, "user", message.Author, "error", err)
	} else {
		r.stats.HistoryWrite()
	}
	return nil
}

// Rooms returns a snapshot of the known room names, order unspecified.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.rooms)
}

// Users returns a snapshot of every registered user and their current room.
func (r *Registry) Users() []domain.UserStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.sessions, func(name string, s *Session) domain.UserStatus {
		status := domain.UserStatus{Name: name}
		if s.room != nil {
			status.Room = s.room.name
		}
		return status
	})
}

// CloseAll closes every registered session's transport. Used during
// shutdown; the individual handlers observe the read failure and run their
// normal cleanup.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.Close()
	}
}

// leaveLocked removes the session from its current room and notifies the
// remaining members. Caller must hold the write lock.
func (r *Registry) leaveLocked(s *Session) {
	if s.room == nil {
		return
	}
	room := s.room
	room.remove(s)
	s.room = nil
	r.notifyLocked(room, fmt.Sprintf("[%s] %s ha salido de la sala.", room.name, s.name))
}

// replayLocked sends the room's prior history to one session, oldest-first.
// Caller must hold the write lock so no live broadcast can interleave.
func (r *Registry) replayLocked(s *Session, roomName string) {
	records, err := r.history.History(roomName)
	if err != nil {
		r.log.Error("history replay failed", "room", roomName, "error", err)
		return
	}
	for _, record := range records {
		if err := s.Send(protocol.CmdChat, record.Rendered()); err != nil {
			r.log.Warn("history replay interrupted",
				"room", roomName, "user", s.name, "error", err)
			s.Close()
			return
		}
	}
}

// notifyLocked fans a NOTIFY event out to every member of the room.
func (r *Registry) notifyLocked(room *Room, text string) {
	for _, member := range room.sessions() {
		if err := member.Send(protocol.CmdNotify, text); err != nil {
			r.log.Warn("dropping unreachable member",
				"room", room.name, "user", member.name, "error", err)
			member.Close()
		}
	}
}

func (r *Registry) sendOrDrop(s *Session, command, payload string) {
	if err := s.Send(command, payload); err != nil {
		r.log.Warn("send failed", "user", s.name, "error", err)
		s.Close()
	}
}
