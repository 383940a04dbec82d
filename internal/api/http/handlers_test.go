package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/activity"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/catalog"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/persistence"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/session"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/notify"
	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/storage"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

type event struct {
	name    string
	payload any
}

// recorder stands in for the websocket hub with one connected client.
type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Broadcast(name string, payload any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{name, payload})
	return 1
}

func (r *recorder) Clients() int { return 1 }

func (r *recorder) named(name string) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	engine   *gin.Engine
	handlers *Handlers
	ui       *recorder
	router   *notification.Router
	store    *persistence.Coordinator
	activity *activity.Hub
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	store := persistence.New(persistence.Slots{
		persistence.SlotDurable: storage.NewMemory(storage.Options{}),
		persistence.SlotSession: storage.NewMemory(storage.Options{KeyPrefix: "textnexus-"}),
	}, logger)

	ui := &recorder{}
	sink := notify.NewUI(ui, logger)
	router := notification.NewRouter(sink, sink, notification.Config{
		RestoreDelay: 10 * time.Millisecond,
		ConfirmTTL:   10 * time.Millisecond,
	}, logger)
	hub := activity.NewHub(activity.Config{Spacing: 10 * time.Millisecond}, activity.HeuristicFactory(logger), logger)
	tracker := session.NewTracker(store, time.Hour, logger)

	t.Cleanup(func() {
		router.Close()
		hub.Close()
		tracker.Close()
		_ = store.Close()
	})

	h := NewHandlers(Deps{
		Store:    store,
		Router:   router,
		Activity: hub,
		Sessions: tracker,
		Catalog:  catalog.New(catalog.Platform{OS: "linux", Arch: "amd64"}, logger),
		UI:       ui,
		Clients:  ui,
		Metrics:  monitoring.NewMetrics(),
		Logger:   logger,
	})
	engine := gin.New()
	h.Register(engine)

	return &fixture{engine: engine, handlers: h, ui: ui, router: router, store: store, activity: hub, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func TestRoot(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, "GET", "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "online", body["status"])
}

func TestStoreRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("save and load", func(t *testing.T) {
		code, body := f.do(t, "PUT", "/store/isDarkMode", `true`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["ok"])

		code, body = f.do(t, "GET", "/store/isDarkMode", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["found"])
		assert.Equal(t, true, body["value"])
	})

	t.Run("missing key", func(t *testing.T) {
		_, body := f.do(t, "GET", "/store/activeWorkspace", "")
		assert.Equal(t, false, body["found"])
		assert.Nil(t, body["value"])
	})

	t.Run("stored null reads as absent", func(t *testing.T) {
		f.do(t, "PUT", "/store/activeTab", `null`)
		_, body := f.do(t, "GET", "/store/activeTab", "")
		assert.Equal(t, false, body["found"])
	})

	t.Run("icons are not persisted", func(t *testing.T) {
		f.do(t, "PUT", "/store/workspaces", `[{"id":"ws-1","icon":"<svg/>","services":["slack-1"]}]`)
		_, body := f.do(t, "GET", "/store/workspaces", "")
		list := body["value"].([]any)
		require.Len(t, list, 1)
		assert.NotContains(t, list[0].(map[string]any), "icon")
		assert.Equal(t, "ws-1", list[0].(map[string]any)["id"])
	})

	t.Run("malformed body", func(t *testing.T) {
		code, _ := f.do(t, "PUT", "/store/windowBounds", `{"width":`)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("invalid key", func(t *testing.T) {
		code, _ := f.do(t, "GET", "/store/bad%20key", "")
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("delete and clear", func(t *testing.T) {
		_, body := f.do(t, "DELETE", "/store/isDarkMode", "")
		assert.Equal(t, true, body["ok"])
		_, body = f.do(t, "GET", "/store/isDarkMode", "")
		assert.Equal(t, false, body["found"])

		f.do(t, "PUT", "/store/disabledServices", `["gmail-1"]`)
		_, body = f.do(t, "DELETE", "/store", "")
		assert.Equal(t, true, body["ok"])
		_, body = f.do(t, "GET", "/store/disabledServices", "")
		assert.Equal(t, false, body["found"])
	})
}

func TestNotificationRoutes(t *testing.T) {
	f := newFixture(t)
	show := `{"service_id":"slack-1","service_name":"Slack","service_type":"slack","title":"<b>3 new</b>","body":"hi"}`

	t.Run("suppressed while visible", func(t *testing.T) {
		_, body := f.do(t, "POST", "/notifications", show)
		assert.Equal(t, false, body["shown"])
	})

	t.Run("shown while hidden", func(t *testing.T) {
		_, body := f.do(t, "POST", "/window/blur", "")
		assert.Equal(t, false, body["visible"])

		_, body = f.do(t, "POST", "/notifications", show)
		assert.Equal(t, true, body["shown"])

		shown := f.ui.named(notify.EventShow)
		require.Len(t, shown, 1)
		n := shown[0].payload.(notification.Notification)
		assert.Equal(t, "Slack - 3 new", n.Title)

		_, body = f.do(t, "GET", "/notifications", "")
		assert.Equal(t, []any{"slack-1"}, body["tracked"])
	})

	t.Run("click restores and switches", func(t *testing.T) {
		code, _ := f.do(t, "POST", "/notifications/slack-1/click", "")
		require.Equal(t, http.StatusOK, code)

		assert.Len(t, f.ui.named(notify.EventWindowRestore), 1)
		require.Eventually(t, func() bool {
			return len(f.ui.named(notify.EventSwitchToService)) == 1
		}, time.Second, 5*time.Millisecond)
		assert.Empty(t, f.router.Tracked())
	})

	t.Run("reply", func(t *testing.T) {
		code, _ := f.do(t, "POST", "/notifications/slack-1/reply", `{"text":""}`)
		assert.Equal(t, http.StatusBadRequest, code)

		code, _ = f.do(t, "POST", "/notifications/slack-1/reply", `{"text":"on my way"}`)
		assert.Equal(t, http.StatusOK, code)
		replies := f.ui.named(notify.EventSendReply)
		require.Len(t, replies, 1)
		assert.Equal(t, map[string]string{"serviceId": "slack-1", "text": "on my way"}, replies[0].payload)
	})

	t.Run("mark as read", func(t *testing.T) {
		f.do(t, "POST", "/notifications", show)
		require.Equal(t, []string{"slack-1"}, f.router.Tracked())

		code, _ := f.do(t, "POST", "/notifications/slack-1/action", `{}`)
		assert.Equal(t, http.StatusBadRequest, code)

		code, _ = f.do(t, "POST", "/notifications/slack-1/action", `{"index":1}`)
		assert.Equal(t, http.StatusOK, code)
		assert.Empty(t, f.router.Tracked())
	})

	t.Run("clear all", func(t *testing.T) {
		f.do(t, "POST", "/notifications", show)
		_, body := f.do(t, "DELETE", "/notifications", "")
		assert.Equal(t, true, body["ok"])
		assert.Empty(t, f.router.Tracked())
	})

	t.Run("focus makes visible", func(t *testing.T) {
		_, body := f.do(t, "POST", "/window/focus", "")
		assert.Equal(t, true, body["visible"])
	})

	t.Run("bad requests", func(t *testing.T) {
		code, _ := f.do(t, "POST", "/window/maximize", "")
		assert.Equal(t, http.StatusBadRequest, code)

		code, _ = f.do(t, "POST", "/notifications", `{"title":"no service"}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestSessionRoutes(t *testing.T) {
	f := newFixture(t)
	partition := "/sessions/persist:slack-1"

	t.Run("register resolves service from url", func(t *testing.T) {
		code, body := f.do(t, "PUT", partition, `{"url":"https://app.slack.com/client"}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "slack-1", body["serviceId"])
		assert.Equal(t, "slack", body["serviceType"])
		assert.Equal(t, "Slack", body["serviceName"])
		assert.Contains(t, body["userAgent"], "Chrome")
	})

	t.Run("snapshot queues activity", func(t *testing.T) {
		_, body := f.do(t, "POST", partition+"/snapshot", `{"title":"Slack","url":"https://app.slack.com/client/T1"}`)
		assert.Equal(t, false, body["queued"])

		_, body = f.do(t, "POST", partition+"/snapshot", `{"title":"(2) Slack"}`)
		assert.Equal(t, true, body["queued"])
	})

	t.Run("visible", func(t *testing.T) {
		code, _ := f.do(t, "POST", partition+"/visible", `{"title":"Slack"}`)
		assert.Equal(t, http.StatusOK, code)
		m, ok := f.activity.Monitor("slack-1")
		require.True(t, ok)
		assert.Equal(t, 0, m.Pending())
	})

	t.Run("save and read back", func(t *testing.T) {
		_, body := f.do(t, "POST", partition+"/save", "")
		assert.Equal(t, true, body["saved"])

		code, body := f.do(t, "GET", partition, "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "persist:slack-1", body["partition"])
		assert.Equal(t, "https://app.slack.com/client/T1", body["url"])
		assert.Equal(t, "slack", body["serviceType"])
	})

	t.Run("list", func(t *testing.T) {
		_, body := f.do(t, "GET", "/sessions", "")
		sessions := body["sessions"].([]any)
		require.Len(t, sessions, 1)
		assert.Equal(t, "slack-1", sessions[0].(map[string]any)["serviceId"])
	})

	t.Run("unknown partition", func(t *testing.T) {
		code, _ := f.do(t, "POST", "/sessions/persist:nope/snapshot", `{"title":"x"}`)
		assert.Equal(t, http.StatusNotFound, code)
		code, _ = f.do(t, "POST", "/sessions/persist:nope/save", "")
		assert.Equal(t, http.StatusNotFound, code)
		code, _ = f.do(t, "GET", "/sessions/persist:nope", "")
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("unregister", func(t *testing.T) {
		_, body := f.do(t, "DELETE", partition, "")
		assert.Equal(t, true, body["ok"])
		_, ok := f.activity.Monitor("slack-1")
		assert.False(t, ok)

		code, _ := f.do(t, "POST", partition+"/snapshot", `{"title":"(3) Slack"}`)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestServiceRoutes(t *testing.T) {
	f := newFixture(t)

	t.Run("catalog", func(t *testing.T) {
		_, body := f.do(t, "GET", "/services", "")
		assert.Greater(t, body["total"], float64(10))

		code, body := f.do(t, "GET", "/services/whatsapp", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "WhatsApp", body["name"])

		code, _ = f.do(t, "GET", "/services/nope", "")
		assert.Equal(t, http.StatusNotFound, code)

		_, body = f.do(t, "GET", "/services/whatsapp/user-agent", "")
		assert.Equal(t, catalog.SafariUserAgent, body["userAgent"])
	})

	t.Run("relays", func(t *testing.T) {
		_, body := f.do(t, "POST", "/services/gmail-1/reload", "")
		assert.Equal(t, float64(1), body["delivered"])
		assert.Len(t, f.ui.named(notify.EventServiceReload), 1)

		f.do(t, "POST", "/services/gmail-1/toggle", `{"enabled":false}`)
		toggles := f.ui.named(notify.EventServiceToggle)
		require.Len(t, toggles, 1)
		assert.Equal(t, gin.H{"serviceId": "gmail-1", "enabled": false}, toggles[0].payload)
	})

	t.Run("notifications toggle mutes the router", func(t *testing.T) {
		_, body := f.do(t, "POST", "/services/gmail-1/notifications", "")
		assert.Equal(t, false, body["enabled"])
		assert.True(t, f.router.Muted("gmail-1"))

		_, body = f.do(t, "POST", "/services/gmail-1/notifications", "")
		assert.Equal(t, true, body["enabled"])
		assert.False(t, f.router.Muted("gmail-1"))

		_, body = f.do(t, "POST", "/services/gmail-1/notifications", `{"enabled":false}`)
		assert.Equal(t, false, body["enabled"])
		assert.True(t, f.router.Muted("gmail-1"))
	})

	t.Run("bad id", func(t *testing.T) {
		code, _ := f.do(t, "POST", "/services/bad:id/reload", "")
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestPushDisabled(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, "GET", "/push/public-key", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.do(t, "POST", "/push/subscriptions", `{"endpoint":"https://push.example/1"}`)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStreamLogs(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, "POST", "/logs", `{"source":"ui","entries":[
		{"id":"1","level":"error","message":"webview crashed","context":{"partition":"persist:slack-1"}},
		{"id":"2","level":"verbose","message":"tick"}
	]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["entries_processed"])

	entries := f.logs.FilterLoggerName("ui").FilterMessage("webview crashed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "persist:slack-1", entries[0].ContextMap()["partition"])
	assert.Equal(t, 1, f.logs.FilterMessage("[VERBOSE] tick").Len())

	code, _ = f.do(t, "POST", "/logs", `{"source":"elsewhere","entries":[{"message":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, "POST", "/logs", `{"source":"ui","entries":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, "GET", "/health", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Len(t, body["storage"], 2)
	assert.Equal(t, float64(1), body["clients"])

	code, body = f.do(t, "GET", "/metrics/summary", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "summary")
	assert.Contains(t, body, "storage")
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("window", func(t *testing.T) {
		res, err := f.handlers.Dispatch(ctx, MsgWindow, []byte(`{"event":"hide"}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"visible": false}, res)

		_, err = f.handlers.Dispatch(ctx, MsgWindow, []byte(`{"event":"spin"}`))
		assert.ErrorIs(t, err, notification.ErrUnknownWindowEvent)
	})

	t.Run("notification click", func(t *testing.T) {
		_, err := f.handlers.Dispatch(ctx, MsgNotificationClick, []byte(`{"serviceId":"discord-1"}`))
		require.NoError(t, err)
		assert.NotEmpty(t, f.ui.named(notify.EventWindowRestore))

		_, err = f.handlers.Dispatch(ctx, MsgNotificationClick, []byte(`{}`))
		assert.Error(t, err)
	})

	t.Run("notification action needs index", func(t *testing.T) {
		_, err := f.handlers.Dispatch(ctx, MsgNotificationAction, []byte(`{"serviceId":"discord-1"}`))
		assert.Error(t, err)
		_, err = f.handlers.Dispatch(ctx, MsgNotificationAction, []byte(`{"serviceId":"discord-1","index":0}`))
		assert.NoError(t, err)
	})

	t.Run("page snapshot", func(t *testing.T) {
		_, err := f.handlers.Dispatch(ctx, MsgPageSnapshot, []byte(`{"partition":"persist:discord-1","title":"x"}`))
		assert.ErrorIs(t, err, errUnknownSession)

		f.do(t, "PUT", "/sessions/persist:discord-1", `{"serviceType":"discord"}`)
		res, err := f.handlers.Dispatch(ctx, MsgPageSnapshot, []byte(`{"partition":"persist:discord-1","title":"Discord"}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"queued": false}, res)

		_, err = f.handlers.Dispatch(ctx, MsgPageVisible, []byte(`{"partition":"persist:discord-1"}`))
		assert.NoError(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := f.handlers.Dispatch(ctx, "launch_missiles", nil)
		assert.ErrorIs(t, err, ErrUnknownMessage)

		_, err = f.handlers.Dispatch(ctx, MsgWindow, nil)
		assert.Error(t, err)
	})
}
