package server

import (
	"bufio"
	"net"
	"strings"
	"time"

	"chat-salas/domain"
	"chat-salas/protocol"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// handleConnection drives one client through its whole lifecycle:
// CONNECTING (handshake) -> NAMED / IN_ROOM (command loop) -> CLOSED
// (cleanup). It runs on its own goroutine; a failure here never affects any
// other connection.
func (s *Server) handleConnection(conn net.Conn) {
	session := NewSession(conn)
	defer s.teardown(session)

	reader := bufio.NewReaderSize(conn, s.bufferSize)
	if !s.handshake(session, reader) {
		return
	}
	s.log.Info("user connected", "user", session.Name(), "addr", session.RemoteAddr())

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// EOF or a transport fault terminates only this handler.
			return
		}
		command, payload := protocol.Decode(strings.TrimRight(line, "\r\n"))
		if command == protocol.CmdSalir {
			return
		}
		s.dispatch(session, command, payload)
	}
}

// handshake performs the name registration exchange. The server stays
// silent after accept; the client must open with HELLO#<nombre>. On a
// duplicate name the client is told and the connection closed without
// registering anything.
func (s *Server) handshake(session *Session, reader *bufio.Reader) bool {
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	command, name := protocol.Decode(strings.TrimRight(line, "\r\n"))
	if command != protocol.CmdHello || name == "" {
		_ = session.Send(protocol.CmdError, "Se esperaba HELLO#<nombre>.")
		return false
	}
	if err := s.registry.Register(name, session); err != nil {
		s.log.Info("registration rejected", "name", name, "addr", session.RemoteAddr())
		_ = session.Send(protocol.CmdError, "Nombre ya en uso.")
		return false
	}
	return session.Send(protocol.CmdOK, "Conexión establecida con el servidor.") == nil
}

func (s *Server) dispatch(session *Session, command, payload string) {
	switch command {
	case protocol.CmdJoinSala:
		roomName := payload
		if roomName == "" {
			roomName = defaultRoom
		}
		s.registry.JoinRoom(session, roomName)
	case protocol.CmdMsg:
		s.relay(session, payload)
	case protocol.CmdLeaveSala:
		s.registry.Leave(session)
		s.reply(session, protocol.CmdOK, "Has salido de la sala.")
	case protocol.CmdRoomList:
		s.reply(session, protocol.CmdRoomList, strings.Join(s.registry.Rooms(), ","))
	case protocol.CmdUserList, protocol.CmdUserListAll:
		entries := lo.Map(s.registry.Users(), func(u domain.UserStatus, _ int) string {
			return u.String()
		})
		s.reply(session, protocol.CmdUserListAll, strings.Join(entries, ","))
	default:
		// Unrecognized commands are reported but never fatal.
		s.stats.RejectedCommand()
		s.reply(session, protocol.CmdError, "Comando no reconocido: "+command)
	}
}

// relay censors, tags, and broadcasts one chat line to the sender's room.
func (s *Server) relay(session *Session, text string) {
	if s.moderator != nil {
		censored, found := s.moderator.Censor(text)
		if len(found) > 0 {
			s.log.Warn("censored message",
				"user", session.Name(), "words", found)
		}
		text = censored
	}

	info := whatlanggo.Detect(text)
	message := domain.Message{
		ID:      uuid.New(),
		Author:  session.Name(),
		Content: text,
		Lang:    info.Lang.Iso6391(),
		At:      time.Now().UTC(),
	}
	if err := s.registry.Broadcast(session, message); err != nil {
		s.reply(session, protocol.CmdError, "No estás en ninguna sala.")
	}
}

// reply answers the session directly; a failed write means the peer is gone,
// so the transport is closed and the read loop will exit on its own.
func (s *Server) reply(session *Session, command, payload string) {
	if err := session.Send(command, payload); err != nil {
		s.log.Warn("reply failed", "user", session.Name(), "error", err)
		session.Close()
	}
}

// teardown is the single cleanup path for every exit: room membership, name
// index, transport. Each step is idempotent, so running it after a partial
// failure is safe.
func (s *Server) teardown(session *Session) {
	s.registry.Unregister(session)
	session.Close()
	if session.Name() != "" {
		s.log.Info("user disconnected", "user", session.Name())
	}
}
