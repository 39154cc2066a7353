package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// BaseSuite talks to a live server over REST and WebSocket.
type BaseSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL not set")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header for a scenario step.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call performs a REST call and decodes the envelope data into out when non nil.
func (s *BaseSuite) Call(method, path, token string, body, out any) int {
	var payload bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&payload).Encode(body))
	}
	request, err := http.NewRequest(method, strings.TrimRight(s.Config.ServerURL, "/")+path, &payload)
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := s.client.Do(request)
	s.Require().NoError(err)
	defer res.Body.Close()

	var decoded envelope
	s.Require().NoError(json.NewDecoder(res.Body).Decode(&decoded))
	s.T().Logf("HTTP %s %s [%d] in %v %s", method, path, res.StatusCode, time.Since(start), decoded.Message)
	if out != nil && len(decoded.Data) > 0 {
		s.Require().NoError(json.Unmarshal(decoded.Data, out))
	}
	return res.StatusCode
}

// Dial opens an authenticated socket and consumes the connected frame.
func (s *BaseSuite) Dial(token string) *websocket.Conn {
	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(s.Config.ServerURL, "/"), "http") + "/ws?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err)
	s.Require().Equal("connected", s.Read(conn).Type)
	return conn
}

func (s *BaseSuite) Send(conn *websocket.Conn, frameType string, data any) {
	raw, err := json.Marshal(data)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(Frame{Type: frameType, Data: raw}))
}

func (s *BaseSuite) Read(conn *websocket.Conn) Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	var frame Frame
	s.Require().NoError(conn.ReadJSON(&frame))
	return frame
}
