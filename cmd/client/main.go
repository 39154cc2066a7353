package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8080/ws"`
	Token     string `envconfig:"CHAT_TOKEN" required:"true"`
	RoomID    string `envconfig:"CHAT_ROOM_ID" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"INFO"`
	Colours   bool   `envconfig:"CHAT_COLOURS" default:"true"`
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run joins one room and relays stdin lines as messages until Ctrl+C or server close.
func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	target, err := url.Parse(config.ServerURL)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid CHAT_SERVER_URL: %w", err)
	}
	query := target.Query()
	query.Set("token", config.Token)
	target.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if err := send(conn, "join_room", map[string]string{"roomId": config.RoomID}); err != nil {
		return exitRuntime, err
	}

	received := make(chan error, 1)
	go func() { received <- readLoop(conn, config.Colours) }()
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := send(conn, "send_message", map[string]string{"roomId": config.RoomID, "content": line}); err != nil {
				log.Error("Send failed", "error", err)
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return exitOK, nil
	case err := <-received:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			log.Info("Server closed the connection", "error", err)
			return exitOK, nil
		}
		return exitRuntime, err
	}
}

// send writes one frame. After the initial join only the stdin goroutine calls it.
func send(conn *websocket.Conn, frameType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame{Type: frameType, Data: raw})
}

func readLoop(conn *websocket.Conn, colours bool) error {
	for {
		var incoming frame
		if err := conn.ReadJSON(&incoming); err != nil {
			return err
		}
		fmt.Println(render(incoming, colours))
	}
}

func render(f frame, colours bool) string {
	line := fmt.Sprintf("[%s] %s", f.Type, string(f.Data))
	if !colours {
		return line
	}
	switch f.Type {
	case "error", "session_replaced":
		return color.New(color.FgRed).Render(line)
	case "new_message", "message_edited":
		return color.New(color.FgGreen).Render(line)
	case "user_joined", "user_left", "room_joined", "room_left":
		return color.New(color.FgCyan).Render(line)
	default:
		return color.New(color.FgGray).Render(line)
	}
}
