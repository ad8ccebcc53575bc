package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aspirewithalina/chatserver/internal/config"
	"github.com/aspirewithalina/chatserver/internal/server"
	"github.com/aspirewithalina/chatserver/internal/stats"
	"github.com/aspirewithalina/chatserver/internal/store"
	"github.com/aspirewithalina/chatserver/internal/testutil"
)

func newTestApp(t *testing.T, db store.Repository) (*ChatApp, *server.ChatServer) {
	t.Helper()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(4)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	presence := server.NewPresenceRegistry(logger, nil)
	cs, err := server.NewChatServer(logger, db, presence, su)
	require.NoError(t, err)

	cfg, err := config.NewConfig("localhost:0", "postgres://unused", "", nil)
	require.NoError(t, err)

	app := NewChatApp(http.NewServeMux(), logger, cs, db, presence, cfg)
	return app, cs
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		app, _ := newTestApp(t, store.NewMemoryRepository())

		ts := httptest.NewServer(app.mux.Handler)
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/api/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("database unavailable", func(t *testing.T) {
		db := &store.MockRepository{}
		db.On("Ping").Return(assert.AnError)

		app, _ := newTestApp(t, db)

		ts := httptest.NewServer(app.mux.Handler)
		defer ts.Close()

		resp, err := http.Get(ts.URL + "/api/health")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestGetPresence(t *testing.T) {
	app, cs := newTestApp(t, store.NewMemoryRepository())
	go cs.Run()
	defer cs.Shutdown(context.Background())

	ts := httptest.NewServer(app.mux.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/presence")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var online []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&online))
	assert.Empty(t, online, "expected nobody online before any registration")
}

func TestServeWs(t *testing.T) {
	app, cs := newTestApp(t, store.NewMemoryRepository())
	go cs.Run()
	defer cs.Shutdown(context.Background())

	ts := httptest.NewServer(app.mux.Handler)
	defer ts.Close()

	wsUrl := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(wsUrl, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	register := map[string]any{
		"id": 1,
		"register": map[string]any{
			"userId":        "alice",
			"userType":      "student",
			"preferredName": "Alice",
			"firstName":     "Alice",
			"lastName":      "Smith",
		},
	}
	require.NoError(t, conn.WriteJSON(register))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply struct {
		Id             int `json:"id"`
		UserRegistered *struct {
			UserId string `json:"userId"`
		} `json:"userRegistered"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	require.NotNil(t, reply.UserRegistered, "expected a userRegistered acknowledgment")
	assert.Equal(t, 1, reply.Id)
	assert.Equal(t, "alice", reply.UserRegistered.UserId)

	// the registered identity now shows in the presence endpoint
	httpResp, err := http.Get(ts.URL + "/api/presence")
	require.NoError(t, err)
	defer httpResp.Body.Close()

	var online []string
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&online))
	assert.Equal(t, []string{"alice"}, online)
}

func TestServeWsOriginCheck(t *testing.T) {
	db := store.NewMemoryRepository()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(4)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	presence := server.NewPresenceRegistry(logger, nil)
	cs, err := server.NewChatServer(logger, db, presence, su)
	require.NoError(t, err)

	cfg, err := config.NewConfig("localhost:0", "postgres://unused", "", []string{"https://app.example.com"})
	require.NoError(t, err)

	app := NewChatApp(http.NewServeMux(), logger, cs, db, presence, cfg)
	go cs.Run()
	defer cs.Shutdown(context.Background())

	ts := httptest.NewServer(app.mux.Handler)
	defer ts.Close()

	wsUrl := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"

	t.Run("allowed origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"https://app.example.com"}}
		conn, resp, err := websocket.DefaultDialer.Dial(wsUrl, header)
		require.NoError(t, err)
		resp.Body.Close()
		conn.Close()
	})

	t.Run("disallowed origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"https://evil.example.com"}}
		_, resp, err := websocket.DefaultDialer.Dial(wsUrl, header)
		require.Error(t, err, "expected the upgrade to be refused")
		if resp != nil {
			resp.Body.Close()
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		}
	})
}
