// File: test/e2e_setup_test.go
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lguibr/bollywood"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lguibr/quizcast/game"
	"github.com/lguibr/quizcast/quiz"
	"github.com/lguibr/quizcast/server"
	"github.com/lguibr/quizcast/utils"
)

// E2ESetupResult holds everything a full-stack test needs.
type E2ESetupResult struct {
	Engine       *bollywood.Engine
	DirectoryPID *bollywood.PID
	Server       *httptest.Server
	BaseURL      string
	WsURL        string
	Cfg          utils.Config
}

// SetupE2ETest boots the engine, the room directory and an HTTP test server.
func SetupE2ETest(t *testing.T, cfg utils.Config) E2ESetupResult {
	t.Helper()

	logger := zap.NewNop()
	engine := bollywood.NewEngine()
	directoryPID := engine.Spawn(bollywood.NewProps(
		game.NewRoomDirectoryProducer(engine, cfg, logger, game.RealClock{})))
	assert.NotNil(t, directoryPID, "directory PID should not be nil")
	time.Sleep(100 * time.Millisecond)

	quizzes := quiz.NewStore(cfg.MaxQuizzes)
	srv := server.NewServer(cfg, logger, engine, directoryPID, quizzes)
	s := httptest.NewServer(srv.Handler())

	return E2ESetupResult{
		Engine:       engine,
		DirectoryPID: directoryPID,
		Server:       s,
		BaseURL:      s.URL,
		WsURL:        "ws" + strings.TrimPrefix(s.URL, "http"),
		Cfg:          cfg,
	}
}

// TeardownE2ETest closes the test server and shuts the engine down.
func TeardownE2ETest(t *testing.T, setup E2ESetupResult, shutdownTimeout time.Duration) {
	t.Helper()
	if setup.Server != nil {
		setup.Server.Close()
	}
	if setup.Engine != nil {
		setup.Engine.Shutdown(shutdownTimeout)
	}
}

const e2eQuizDoc = `{
	"quiz_title": "Capitals",
	"questions": [
		{"id": 1, "text": "Capital of France?", "options": ["Paris", "Lyon", "Nice", "Lille"], "answer_index": 0},
		{"id": 2, "text": "Capital of Japan?", "options": ["Osaka", "Tokyo", "Kyoto", "Nagoya"], "answer_index": 1}
	]
}`

// createRoomHTTP drives POST /room/create with an inline quiz document.
func createRoomHTTP(t *testing.T, baseURL string, timeLimit int) (roomCode, organizerToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"quiz": %s, "time_limit": %d}`, e2eQuizDoc, timeLimit)
	resp, err := http.Post(baseURL+"/room/create", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		RoomCode       string `json:"room_code"`
		OrganizerToken string `json:"organizer_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.RoomCode)
	require.NotEmpty(t, created.OrganizerToken)
	return created.RoomCode, created.OrganizerToken
}

// dialWS opens a realtime connection for the given role.
func dialWS(t *testing.T, wsURL, roomCode, clientID, query string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("%s/ws/%s/%s", wsURL, roomCode, clientID)
	if query != "" {
		url += "?" + query
	}
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dialing %s", url)
	return ws
}

// sendJSON writes one command frame.
func sendJSON(t *testing.T, ws *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

// readEvent reads the next JSON frame.
func readEvent(t *testing.T, ws *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(timeout))
	var event map[string]interface{}
	require.NoError(t, ws.ReadJSON(&event))
	return event
}

// waitForType reads frames until one matches the wanted type, skipping
// interleaved events such as TIMER ticks and roster updates.
func waitForType(t *testing.T, ws *websocket.Conn, wanted string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var seen []string
	for time.Now().Before(deadline) {
		ws.SetReadDeadline(deadline)
		var event map[string]interface{}
		if err := ws.ReadJSON(&event); err != nil {
			t.Fatalf("waiting for %s: %v (saw %v)", wanted, err, seen)
		}
		typ, _ := event["type"].(string)
		if typ == wanted {
			return event
		}
		seen = append(seen, typ)
	}
	t.Fatalf("never received %s; saw %v", wanted, seen)
	return nil
}
