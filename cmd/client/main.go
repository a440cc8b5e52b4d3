package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chat-salas/protocol"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddr string `envconfig:"CHAT_SERVER_ADDR" default:"localhost:5000"`
	Colours    bool   `envconfig:"CHAT_COLOURS" default:"true"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// serverEvent is one decoded line received from the relay.
type serverEvent struct {
	Command string
	Payload string
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdin := bufio.NewReader(os.Stdin)
	fmt.Print("Ingrese su nombre: ")
	name, err := stdin.ReadString('\n')
	if err != nil {
		return exitRuntime, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return exitConfig, fmt.Errorf("se necesita un nombre")
	}

	conn, err := net.Dial("tcp", config.ServerAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddr, err)
	}
	defer func() {
		log.Debug("Closing connection...")
		_ = conn.Close()
	}()

	if err := sendLine(conn, protocol.CmdHello, name); err != nil {
		return exitRuntime, err
	}

	// The reader goroutine is the only one touching the socket's read side.
	// Decoded events are handed off over a buffered channel so a slow
	// terminal never blocks the connection.
	events := make(chan serverEvent, 256)
	go func() {
		defer close(events)
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			command, payload := protocol.Decode(strings.TrimRight(line, "\r\n"))
			events <- serverEvent{Command: command, Payload: payload}
		}
	}()

	input := make(chan string)
	go func() {
		defer close(input)
		for {
			line, err := stdin.ReadString('\n')
			if err != nil {
				return
			}
			input <- strings.TrimSpace(line)
		}
	}()

	printHelp()
	for {
		select {
		case <-ctx.Done():
			_ = sendLine(conn, protocol.CmdSalir, "")
			return exitOK, nil
		case evt, ok := <-events:
			if !ok {
				fmt.Println("Desconectado del servidor.")
				return exitRuntime, nil
			}
			render(config, evt)
		case line, ok := <-input:
			if !ok {
				_ = sendLine(conn, protocol.CmdSalir, "")
				return exitOK, nil
			}
			quit, err := handleInput(conn, line)
			if err != nil {
				return exitRuntime, err
			}
			if quit {
				return exitOK, nil
			}
		}
	}
}

func sendLine(conn net.Conn, command, payload string) error {
	if _, err := conn.Write([]byte(protocol.Encode(command, payload) + "\n")); err != nil {
		return fmt.Errorf("sending %s: %w", command, err)
	}
	return nil
}

// handleInput maps terminal input to wire commands. Anything that is not a
// slash command is sent as a chat message.
func handleInput(conn net.Conn, line string) (quit bool, err error) {
	switch {
	case line == "":
		return false, nil
	case line == "/salir":
		return true, sendLine(conn, protocol.CmdSalir, "")
	case line == "/leave":
		return false, sendLine(conn, protocol.CmdLeaveSala, "")
	case line == "/rooms":
		return false, sendLine(conn, protocol.CmdRoomList, "")
	case line == "/users":
		return false, sendLine(conn, protocol.CmdUserListAll, "")
	case line == "/help":
		printHelp()
		return false, nil
	case strings.HasPrefix(line, "/join "):
		return false, sendLine(conn, protocol.CmdJoinSala, strings.TrimSpace(strings.TrimPrefix(line, "/join ")))
	case strings.HasPrefix(line, "/"):
		fmt.Println("Comando no reconocido. /help para ayuda.")
		return false, nil
	default:
		return false, sendLine(conn, protocol.CmdMsg, line)
	}
}

func render(config Config, evt serverEvent) {
	paint := func(c color.Color, text string) string {
		if config.Colours {
			return c.Render(text)
		}
		return text
	}
	switch evt.Command {
	case protocol.CmdChat:
		fmt.Println(evt.Payload)
	case protocol.CmdNotify:
		fmt.Println(paint(color.FgYellow, evt.Payload))
	case protocol.CmdOK:
		fmt.Println(paint(color.FgGreen, evt.Payload))
	case protocol.CmdError:
		fmt.Println(paint(color.FgRed, "ERROR: "+evt.Payload))
	case protocol.CmdRoomList:
		renderTable("Sala", splitCSV(evt.Payload))
	case protocol.CmdUserListAll:
		renderTable("Usuario", splitCSV(evt.Payload))
	default:
		fmt.Println(evt.Payload)
	}
}

func splitCSV(payload string) []string {
	if payload == "" {
		return nil
	}
	return strings.Split(payload, ",")
}

func renderTable(header string, rows []string) {
	if len(rows) == 0 {
		fmt.Println("(vacío)")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{header})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	for _, row := range rows {
		table.Append([]string{strings.TrimSpace(row)})
	}
	table.Render()
}

func printHelp() {
	fmt.Println("Comandos: /join <sala>, /leave, /rooms, /users, /salir, /help")
	fmt.Println("Cualquier otra línea se envía como mensaje a la sala actual.")
}
