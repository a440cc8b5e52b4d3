// Package protocol implements the line-oriented wire format spoken between
// the relay server and its clients.
//
// Every line carries exactly one command in the form "COMANDO#datos". The
// separator is the FIRST '#' on the line only: a payload containing '#' is
// never split further, and there is no escaping mechanism. This is a known
// limitation of the wire format, kept for compatibility with existing
// clients; do not "fix" it here.
//
// A line without any '#' is treated as a bare chat line: it decodes to the
// CHAT command with the whole line as payload.
package protocol

import "strings"

// Separator splits the command token from its payload.
const Separator = "#"

// Commands accepted from clients.
const (
	CmdHello       = "HELLO"
	CmdJoinSala    = "JOIN_SALA"
	CmdMsg         = "MSG"
	CmdLeaveSala   = "LEAVE_SALA"
	CmdRoomList    = "ROOM_LIST"
	CmdUserList    = "USER_LIST" // legacy alias, answered like USER_LIST_ALL
	CmdUserListAll = "USER_LIST_ALL"
	CmdSalir       = "SALIR"
)

// Replies sent by the server.
const (
	CmdOK     = "OK"
	CmdError  = "ERROR"
	CmdChat   = "CHAT"
	CmdNotify = "NOTIFY"
)

// Commands lists every client command together with a short description,
// mainly for help output and validation.
var Commands = map[string]string{
	CmdHello:       "Registrar usuario nuevo.",
	CmdJoinSala:    "Unirse o crear una sala.",
	CmdMsg:         "Enviar mensaje a los usuarios de la sala actual.",
	CmdLeaveSala:   "Salir de la sala actual.",
	CmdRoomList:    "Solicitar la lista de salas disponibles.",
	CmdUserList:    "Solicitar la lista de usuarios conectados.",
	CmdUserListAll: "Solicitar la lista de usuarios conectados.",
	CmdSalir:       "Salir del chat.",
}

// Encode builds a wire line from a command and its payload.
func Encode(command, payload string) string {
	return command + Separator + payload
}

// Decode splits a wire line into command and payload on the first separator.
// The command token is upper-cased and trimmed; the payload is trimmed of
// surrounding whitespace only, interior whitespace is preserved.
func Decode(line string) (command, payload string) {
	before, after, found := strings.Cut(line, Separator)
	if !found {
		return CmdChat, strings.TrimSpace(line)
	}
	return strings.ToUpper(strings.TrimSpace(before)), strings.TrimSpace(after)
}

// Valid reports whether the command is one a client is allowed to send.
func Valid(command string) bool {
	_, ok := Commands[command]
	return ok
}
