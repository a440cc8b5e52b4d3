package server

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"chat-salas/moderation"
	"chat-salas/observability"
	"chat-salas/protocol"
	"chat-salas/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, moderator *moderation.Moderator) (string, repositories.HistoryRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.New(slog.DiscardHandler)
	history := repositories.NewHistoryRepository(db, log, nil)
	stats := observability.NewRelayStats()
	registry := NewRegistry(log, history, stats)
	relay := New(log, registry, moderator, stats, "127.0.0.1:0", 1024)
	require.NoError(t, relay.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("relay did not stop in time")
		}
	})
	return relay.Addr(), history
}

type relayClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialRelay(t *testing.T, addr string) *relayClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &relayClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *relayClient) send(command, payload string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(protocol.Encode(command, payload) + "\n"))
	require.NoError(c.t, err)
}

func (c *relayClient) expect() (command, payload string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err, "waiting for a server line")
	return protocol.Decode(strings.TrimRight(line, "\n"))
}

func (c *relayClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := c.reader.ReadString('\n')
	require.Error(c.t, err)
}

func (c *relayClient) register(name string) {
	c.t.Helper()
	c.send(protocol.CmdHello, name)
	cmd, _ := c.expect()
	require.Equal(c.t, protocol.CmdOK, cmd)
}

func (c *relayClient) join(room string) {
	c.t.Helper()
	c.send(protocol.CmdJoinSala, room)
	cmd, payload := c.expect()
	require.Equal(c.t, protocol.CmdOK, cmd)
	require.Contains(c.t, payload, room)
}

// The reference scenario: alice and bob meet in General, alice talks, bob
// hears her, and the exchange ends up in the history store.
func TestRelay_BroadcastScenario(t *testing.T) {
	req := require.New(t)
	addr, history := startRelay(t, nil)

	alice := dialRelay(t, addr)
	alice.register("alice")
	alice.join("General")
	alice.expect() // own join notify

	bob := dialRelay(t, addr)
	bob.register("bob")
	bob.join("General")
	bob.expect()   // own join notify
	alice.expect() // bob's join notify

	alice.send(protocol.CmdMsg, "hi")

	cmd, payload := bob.expect()
	req.Equal(protocol.CmdChat, cmd)
	req.Equal("alice: hi", payload)

	// Sender echo is not suppressed.
	cmd, payload = alice.expect()
	req.Equal(protocol.CmdChat, cmd)
	req.Equal("alice: hi", payload)

	req.Eventually(func() bool {
		records, err := history.History("General")
		return err == nil && len(records) == 1 &&
			records[0].Author == "alice" && records[0].Content == "hi" &&
			records[0].Room == "General"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRelay_DuplicateNameIsRejectedAndClosed(t *testing.T) {
	req := require.New(t)
	addr, _ := startRelay(t, nil)

	alice := dialRelay(t, addr)
	alice.register("alice")

	imposter := dialRelay(t, addr)
	imposter.send(protocol.CmdHello, "alice")
	cmd, payload := imposter.expect()
	req.Equal(protocol.CmdError, cmd)
	req.Equal("Nombre ya en uso.", payload)
	imposter.expectClosed()

	// The original session is untouched.
	alice.send(protocol.CmdRoomList, "")
	cmd, _ = alice.expect()
	req.Equal(protocol.CmdRoomList, cmd)
}

func TestRelay_UnknownCommandIsNotFatal(t *testing.T) {
	req := require.New(t)
	addr, _ := startRelay(t, nil)

	client := dialRelay(t, addr)
	client.register("alice")

	client.send("FOO", "bar")
	cmd, payload := client.expect()
	req.Equal(protocol.CmdError, cmd)
	req.Equal("Comando no reconocido: FOO", payload)

	// The connection keeps serving.
	client.send(protocol.CmdRoomList, "")
	cmd, payload = client.expect()
	req.Equal(protocol.CmdRoomList, cmd)
	req.Empty(payload)
}

func TestRelay_MsgWithoutRoom(t *testing.T) {
	req := require.New(t)
	addr, _ := startRelay(t, nil)

	client := dialRelay(t, addr)
	client.register("alice")

	client.send(protocol.CmdMsg, "nadie me oye")
	cmd, payload := client.expect()
	req.Equal(protocol.CmdError, cmd)
	req.Contains(payload, "sala")
}

func TestRelay_RoomListAndUserList(t *testing.T) {
	req := require.New(t)
	addr, _ := startRelay(t, nil)

	alice := dialRelay(t, addr)
	alice.register("alice")

	// Before any join the room list is empty.
	alice.send(protocol.CmdRoomList, "")
	cmd, payload := alice.expect()
	req.Equal(protocol.CmdRoomList, cmd)
	req.Empty(payload)

	alice.join("General")
	alice.expect() // join notify

	bob := dialRelay(t, addr)
	bob.register("bob")

	bob.send(protocol.CmdRoomList, "")
	cmd, payload = bob.expect()
	req.Equal(protocol.CmdRoomList, cmd)
	req.Equal("General", payload)

	bob.send(protocol.CmdUserListAll, "")
	cmd, payload = bob.expect()
	req.Equal(protocol.CmdUserListAll, cmd)
	entries := strings.Split(payload, ",")
	req.ElementsMatch([]string{"alice (General)", "bob (sin sala)"}, entries)
}

func TestRelay_HistoryReplayOnJoin(t *testing.T) {
	req := require.New(t)
	addr, _ := startRelay(t, nil)

	alice := dialRelay(t, addr)
	alice.register("alice")
	alice.join("General")
	alice.expect() // join notify
	alice.send(protocol.CmdMsg, "uno")
	alice.expect() // echo
	alice.send(protocol.CmdMsg, "dos")
	alice.expect() // echo
	alice.send(protocol.CmdSalir, "")
	alice.expectClosed()

	carol := dialRelay(t, addr)
	carol.register("carol")
	carol.join("General")

	// Replay strictly oldest-first, before the live join notify.
	cmd, payload := carol.expect()
	req.Equal(protocol.CmdChat, cmd)
	req.Equal("alice: uno", payload)
	cmd, payload = carol.expect()
	req.Equal(protocol.CmdChat, cmd)
	req.Equal("alice: dos", payload)
	cmd, payload = carol.expect()
	req.Equal(protocol.CmdNotify, cmd)
	req.Contains(payload, "carol se ha unido")
}

func TestRelay_LeaveRoomNotifiesOthers(t *testing.T) {
	req := require.New(t)
	addr, _ := startRelay(t, nil)

	alice := dialRelay(t, addr)
	alice.register("alice")
	alice.join("General")
	alice.expect()

	bob := dialRelay(t, addr)
	bob.register("bob")
	bob.join("General")
	bob.expect()
	alice.expect() // bob joined

	bob.send(protocol.CmdLeaveSala, "General")
	cmd, _ := bob.expect()
	req.Equal(protocol.CmdOK, cmd)

	cmd, payload := alice.expect()
	req.Equal(protocol.CmdNotify, cmd)
	req.Contains(payload, "bob ha salido de la sala")
}

func TestRelay_DisconnectCleansUpRegistration(t *testing.T) {
	req := require.New(t)
	addr, _ := startRelay(t, nil)

	alice := dialRelay(t, addr)
	alice.register("alice")
	alice.join("General")
	alice.expect()

	// Abrupt disconnect, no SALIR.
	req.NoError(alice.conn.Close())

	// The name becomes available again once cleanup ran.
	req.Eventually(func() bool {
		probe, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = probe.Close() }()
		if _, err := probe.Write([]byte(protocol.Encode(protocol.CmdHello, "alice") + "\n")); err != nil {
			return false
		}
		_ = probe.SetReadDeadline(time.Now().Add(time.Second))
		line, err := bufio.NewReader(probe).ReadString('\n')
		if err != nil {
			return false
		}
		cmd, _ := protocol.Decode(strings.TrimRight(line, "\n"))
		return cmd == protocol.CmdOK
	}, 2*time.Second, 50*time.Millisecond)
}

func TestRelay_HandshakeRequiresHello(t *testing.T) {
	req := require.New(t)
	addr, _ := startRelay(t, nil)

	client := dialRelay(t, addr)
	client.send(protocol.CmdMsg, "hola")
	cmd, _ := client.expect()
	req.Equal(protocol.CmdError, cmd)
	client.expectClosed()
}

func TestRelay_ModerationCensorsBroadcast(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', slog.New(slog.DiscardHandler))
	req.NoError(err)
	addr, _ := startRelay(t, &moderator)

	alice := dialRelay(t, addr)
	alice.register("alice")
	alice.join("General")
	alice.expect()

	alice.send(protocol.CmdMsg, "the badger strikes")
	cmd, payload := alice.expect()
	req.Equal(protocol.CmdChat, cmd)
	req.Equal("alice: the ****** strikes", payload)
}
