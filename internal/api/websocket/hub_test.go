package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
	"github.com/davidleathers/workflow-insights-backend/internal/testutil"
)

const allowedOrigin = "http://localhost:5173"

func startHub(t *testing.T) (*RunHub, *httptest.Server, uuid.UUID) {
	t.Helper()
	return startHubWith(t, nil)
}

func startHubWith(t *testing.T, mutate func(*RunHub)) (*RunHub, *httptest.Server, uuid.UUID) {
	t.Helper()
	hub := NewRunHub(zaptest.NewLogger(t), []string{allowedOrigin})
	if mutate != nil {
		mutate(hub)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	account := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, account)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv, account
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestRunHub_DeliversAccountEvents(t *testing.T) {
	hub, srv, account := startHub(t)
	conn := dial(t, srv)

	welcome := readMessage(t, conn)
	assert.Equal(t, EventConnectionEstablished, welcome.Type)
	testutil.AssertEventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(reporting.Event{Type: reporting.EventAnalysisCompleted, AccountID: uuid.New(), RunID: uuid.New()})

	runID := uuid.New()
	hub.Publish(reporting.Event{
		Type:      reporting.EventAnalysisCompleted,
		AccountID: account,
		RunID:     runID,
		Summary:   reporting.Summary{Cases: 3},
		Timestamp: time.Now().UTC(),
	})

	msg := readMessage(t, conn)
	assert.Equal(t, reporting.EventAnalysisCompleted, msg.Type)

	raw, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	var event reporting.Event
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, runID, event.RunID, "events of other accounts must not be delivered")
	assert.Equal(t, 3, event.Summary.Cases)
}

func TestRunHub_UnregistersClosedClients(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)
	readMessage(t, conn)
	testutil.AssertEventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	testutil.AssertEventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunHub_StopDisconnects(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)
	readMessage(t, conn)

	hub.Stop()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	hub.Publish(reporting.Event{AccountID: uuid.New()})
	testutil.AssertEventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRunHub_CheckOrigin(t *testing.T) {
	_, srv, _ := startHub(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{name: "no origin header", ok: true},
		{name: "allowed origin", origin: allowedOrigin, ok: true},
		{name: "allowed origin with trailing slash", origin: allowedOrigin + "/", ok: true},
		{name: "unknown origin", origin: "https://evil.example", ok: false},
		{name: "same host other port", origin: "http://localhost:8081", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if tt.ok {
				require.NoError(t, err)
				conn.Close()
				return
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}
}

func TestRunHub_OnePingPerPeriod(t *testing.T) {
	const period = 100 * time.Millisecond
	_, srv, _ := startHubWith(t, func(h *RunHub) { h.pingPeriod = period })
	conn := dial(t, srv)

	pings := 0
	conn.SetPingHandler(func(data string) error {
		pings++
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	window := 10 * period
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(window)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	assert.GreaterOrEqual(t, pings, 5)
	assert.LessOrEqual(t, pings, 11, "each period must produce a single ping")
}
