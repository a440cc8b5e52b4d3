package e2e

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"chat-salas/observability"
	"chat-salas/protocol"
	"chat-salas/repositories"
	"chat-salas/server"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseRelaySuite boots (or attaches to) a relay and hands out line-level
// protocol clients to the scenarios.
type BaseRelaySuite struct {
	suite.Suite
	Config  Config
	History repositories.HistoryRepository

	addr   string
	cancel context.CancelFunc
	done   chan struct{}
}

// SetupSuite loads the environment configuration and, unless an external
// relay address is configured, starts an in-process relay backed by a
// throwaway Badger directory.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.RelayAddr != "" {
		s.addr = s.Config.RelayAddr
		return
	}

	log := logs.GetLoggerFromString(s.Config.LogLevel)
	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	stats := observability.NewRelayStats()
	s.History = repositories.NewHistoryRepository(db, log, nil)
	registry := server.NewRegistry(log, s.History, stats)
	relay := server.New(log, registry, nil, stats, "127.0.0.1:0", 1024)
	s.Require().NoError(relay.Listen())
	s.addr = relay.Addr()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = relay.Serve(ctx)
	}()
}

func (s *BaseRelaySuite) TearDownSuite() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		s.T().Error("relay did not stop in time")
	}
}

// Banner prints a colorized section header in the test log.
func (s *BaseRelaySuite) Banner(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// RelayClient is a line-level protocol client for scenarios.
type RelayClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects a new client to the relay under test.
func (s *BaseRelaySuite) Dial(t *testing.T) *RelayClient {
	conn, err := net.Dial("tcp", s.addr)
	s.Require().NoError(err)
	t.Cleanup(func() { _ = conn.Close() })
	return &RelayClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *RelayClient) Send(command, payload string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(protocol.Encode(command, payload) + "\n"))
	if err != nil {
		c.t.Fatalf("sending %s: %v", command, err)
	}
}

// Expect reads the next line and fails the test if the command differs.
func (c *RelayClient) Expect(command string) string {
	c.t.Helper()
	cmd, payload := c.Next()
	if cmd != command {
		c.t.Fatalf("expected %s, got %s#%s", command, cmd, payload)
	}
	return payload
}

// Next reads and decodes the next server line.
func (c *RelayClient) Next() (command, payload string) {
	c.t.Helper()
	if err := c.conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		c.t.Fatalf("setting deadline: %v", err)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.t.Fatalf("waiting for a server line: %v", err)
	}
	return protocol.Decode(strings.TrimRight(line, "\r\n"))
}

// ExpectClosed asserts the server closed the connection.
func (c *RelayClient) ExpectClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, err := c.reader.ReadString('\n'); err == nil {
		c.t.Fatal("expected the connection to be closed")
	}
}
