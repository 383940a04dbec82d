package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type received struct {
	Type string         `json:"type"`
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

func startHub(t *testing.T, d Dispatcher) (*Hub, string) {
	t.Helper()
	hub := NewHub(d, Config{}, nil)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string) *websocket.Conn {
	t.Helper()
	before := hub.Clients()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == before+1 }, time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg received
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func TestBroadcast(t *testing.T) {
	hub, url := startHub(t, nil)

	assert.Equal(t, 0, hub.Broadcast("window-restore", struct{}{}))

	a := dial(t, hub, url)
	b := dial(t, hub, url)

	n := hub.Broadcast("switch-to-service", map[string]string{"serviceId": "slack-1"})
	assert.Equal(t, 2, n)

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		assert.Equal(t, "switch-to-service", msg.Type)
		assert.Equal(t, "slack-1", msg.Data["serviceId"])
	}
}

func TestPingPong(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping", "id": "7"}))
	msg := read(t, conn)
	assert.Equal(t, TypePong, msg.Type)
	assert.Equal(t, "7", msg.ID)
}

func TestDispatch(t *testing.T) {
	d := DispatcherFunc(func(ctx context.Context, msgType string, data []byte) (any, error) {
		switch msgType {
		case "echo":
			var in map[string]any
			if err := sonic.Unmarshal(data, &in); err != nil {
				return nil, err
			}
			return in, nil
		case "fire":
			return nil, nil
		default:
			return nil, errors.New("unknown message type")
		}
	})
	hub, url := startHub(t, d)
	conn := dial(t, hub, url)

	t.Run("result", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"echo","id":"1","data":{"partition":"persist:slack-1"}}`)))
		msg := read(t, conn)
		assert.Equal(t, "echo.result", msg.Type)
		assert.Equal(t, "1", msg.ID)
		assert.Equal(t, "persist:slack-1", msg.Data["partition"])
	})

	t.Run("error", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus","id":"2"}`)))
		msg := read(t, conn)
		assert.Equal(t, TypeError, msg.Type)
		assert.Equal(t, "2", msg.ID)
		assert.Equal(t, "bogus", msg.Data["request"])
	})

	t.Run("malformed", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
		msg := read(t, conn)
		assert.Equal(t, TypeError, msg.Type)
	})

	t.Run("no result is silent", func(t *testing.T) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"fire"}`)))
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
		assert.Equal(t, TypePong, read(t, conn).Type)
	})
}

func TestNoDispatcher(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "window"}))
	msg := read(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "not ready", msg.Data["message"])

	hub.SetDispatcher(DispatcherFunc(func(context.Context, string, []byte) (any, error) {
		return map[string]bool{"ok": true}, nil
	}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "window"}))
	assert.Equal(t, "window.result", read(t, conn).Type)
}

func TestClientDisconnect(t *testing.T) {
	metrics := monitoring.NewMetrics()
	hub, url := startHub(t, nil)
	hub.WithMetrics(metrics)

	conn := dial(t, hub, url)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.WSConnections))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.WSConnections))
}

func TestClose(t *testing.T) {
	hub := NewHub(nil, Config{}, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn := dial(t, hub, url)
	hub.Close()
	hub.Close()

	assert.Equal(t, 0, hub.Clients())

	// The client sees a normal close
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	// New connections are refused
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{PongWait: time.Second, PingPeriod: 2 * time.Second}.withDefaults()
	assert.Less(t, cfg.PingPeriod, cfg.PongWait)
	assert.Equal(t, DefaultConfig().SendBuffer, cfg.SendBuffer)
}
