package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEvent struct {
	Type string          `json:"type"`
	From int             `json:"from"`
	Data json.RawMessage `json:"data"`
}

func startChat(t *testing.T) (*testEnv, string) {
	t.Helper()
	env := newTestEnv(t)
	// Pump goroutines may outlive the test.
	env.srv.log = NewNoOpLogger()

	ts := httptest.NewServer(env.h)
	t.Cleanup(ts.Close)
	return env, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat"
}

// dial connects as userID and waits for the greeting, which is sent only
// after the connection is registered.
func dial(t *testing.T, env *testEnv, url string, userID int) *websocket.Conn {
	t.Helper()
	token, err := env.srv.issueToken(userID)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	evt := readEvent(t, conn)
	require.Equal(t, "info", evt.Type)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt wsEvent
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestChat_DeliversCleanMessage(t *testing.T) {
	env, url := startChat(t)
	sent := time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)
	env.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO messages")).
		WithArgs(7, 9, "salam").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(31), sent))

	recipient := dial(t, env, url, 9)
	sender := dial(t, env, url, 7)

	require.NoError(t, sender.WriteJSON(ChatMessage{Type: "message", To: 9, Body: "  salam "}))

	for _, conn := range []*websocket.Conn{recipient, sender} {
		evt := readEvent(t, conn)
		require.Equal(t, "message", evt.Type)
		assert.Equal(t, 7, evt.From)

		var msg ChatMessage
		require.NoError(t, json.Unmarshal(evt.Data, &msg))
		assert.Equal(t, int64(31), msg.ID)
		assert.Equal(t, 9, msg.To)
		assert.Equal(t, "salam", msg.Body)
		assert.True(t, sent.Equal(msg.Ts))
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestChat_BlocksFlaggedMessage(t *testing.T) {
	env, url := startChat(t)
	env.mock.ExpectExec(regexp.QuoteMeta(insertReportSQL)).
		WithArgs(fixedReportID.String(), 7, "message", false,
			sqlmock.AnyArg(), []byte(`["stupid"]`), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sender := dial(t, env, url, 7)
	require.NoError(t, sender.WriteJSON(ChatMessage{Type: "message", To: 9, Body: "you are STUPID"}))

	evt := readEvent(t, sender)
	require.Equal(t, "blocked", evt.Type)
	var blocked BlockedMessage
	require.NoError(t, json.Unmarshal(evt.Data, &blocked))
	assert.Equal(t, BlockedMessage{To: 9, FlaggedWords: []string{"stupid"}, ReportID: fixedReportID.String()}, blocked)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestChat_RejectsInvalidFrames(t *testing.T) {
	env, url := startChat(t)
	sender := dial(t, env, url, 7)

	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `hello`},
		{"unknown type", `{"type":"poke","to":9}`},
		{"to self", `{"type":"message","to":7,"body":"hi"}`},
		{"blank body", `{"type":"message","to":9,"body":"   "}`},
		{"no recipient", `{"type":"message","body":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
			assert.Equal(t, "error", readEvent(t, sender).Type)
		})
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestChat_TypingIsForwarded(t *testing.T) {
	env, url := startChat(t)
	recipient := dial(t, env, url, 9)
	sender := dial(t, env, url, 7)

	require.NoError(t, sender.WriteJSON(ChatMessage{Type: "typing", To: 9}))

	evt := readEvent(t, recipient)
	assert.Equal(t, "typing", evt.Type)
	assert.Equal(t, 7, evt.From)
}

func TestChat_RequiresToken(t *testing.T) {
	_, url := startChat(t)

	for name, suffix := range map[string]string{
		"missing": "",
		"garbage": "?token=not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(url+suffix, nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestChat_RejectsForeignOrigin(t *testing.T) {
	env, url := startChat(t)
	token, err := env.srv.issueToken(7)
	require.NoError(t, err)

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url+"?token="+token, header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
