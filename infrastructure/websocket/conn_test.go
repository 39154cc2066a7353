package websocket

import (
	"chat-realtime/errors"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// serve starts a server that hands every upgraded connection to accepted.
func serve(t *testing.T, opts Options) (string, <-chan *Conn) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	accepted := make(chan *Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(log, w, r, opts)
		if err != nil {
			return
		}
		accepted <- conn
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), accepted
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConn_Exchanges_Frames_In_Order(t *testing.T) {
	req := require.New(t)
	url, accepted := serve(t, Options{})
	client := dial(t, url)
	server := <-accepted

	// When the client writes a frame, the server receives it
	req.NoError(client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	data, err := server.Receive()
	req.NoError(err)
	req.Equal(`{"type":"ping"}`, string(data))

	// When the server sends three frames, the client reads them in order
	for _, frame := range []string{"one", "two", "three"} {
		req.NoError(server.Send(context.Background(), []byte(frame)))
	}
	for _, want := range []string{"one", "two", "three"} {
		_, got, err := client.ReadMessage()
		req.NoError(err)
		req.Equal(want, string(got))
	}
}

func TestConn_Close_Flushes_Then_Sends_Code(t *testing.T) {
	req := require.New(t)
	url, accepted := serve(t, Options{})
	client := dial(t, url)
	server := <-accepted

	// Given a final notice is queued right before closing
	req.NoError(server.Send(context.Background(), []byte(`{"type":"session_replaced","data":{}}`)))
	req.NoError(server.Close(1000, "session replaced"))

	// Then the client reads the notice first and the close code after
	_, data, err := client.ReadMessage()
	req.NoError(err)
	req.Contains(string(data), "session_replaced")

	_, _, err = client.ReadMessage()
	var closeErr *websocket.CloseError
	req.ErrorAs(err, &closeErr)
	req.Equal(1000, closeErr.Code)
	req.Equal("session replaced", closeErr.Text)

	// And the connection refuses further frames
	<-server.Done()
	req.ErrorIs(server.Send(context.Background(), []byte("late")), errors.ErrConnectionClosed)
	_, err = server.Receive()
	req.ErrorIs(err, errors.ErrConnectionClosed)
}

func TestConn_Receive_Reports_Peer_Close(t *testing.T) {
	req := require.New(t)
	url, accepted := serve(t, Options{})
	client := dial(t, url)
	server := <-accepted

	req.NoError(client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	_, err := server.Receive()
	req.ErrorIs(err, errors.ErrConnectionClosed)
}

func TestConn_Receive_Times_Out_Idle_Peer(t *testing.T) {
	req := require.New(t)
	url, accepted := serve(t, Options{PongWait: 100 * time.Millisecond})
	_ = dial(t, url)
	server := <-accepted

	// Given a client that never reads, so it never answers pings
	_, err := server.Receive()

	// Then the read deadline expires
	req.ErrorIs(err, errors.ErrIdleTimeout)
}

func TestConn_Rejects_Oversized_Frame(t *testing.T) {
	req := require.New(t)
	url, accepted := serve(t, Options{MaxFrameSize: 16})
	client := dial(t, url)
	server := <-accepted

	req.NoError(client.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))

	_, err := server.Receive()
	req.ErrorIs(err, errors.ErrProtocol)
}
