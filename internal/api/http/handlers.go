package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/activity"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/catalog"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/persistence"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/session"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName = "TextNexus Backend"
	version     = "1.0.0"
)

// partitionPrefix is how the shell names persistent webview partitions.
const partitionPrefix = "persist:"

// ClientCounter reports connected render clients.
type ClientCounter interface {
	Clients() int
}

// Deps are the components the handlers drive. Push and Clients may be nil.
type Deps struct {
	Store    *persistence.Coordinator
	Router   *notification.Router
	Activity *activity.Hub
	Sessions *session.Tracker
	Catalog  *catalog.Catalog
	Push     *notify.WebPush
	UI       notify.Broadcaster
	Clients  ClientCounter
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	store    *persistence.Coordinator
	router   *notification.Router
	activity *activity.Hub
	sessions *session.Tracker
	catalog  *catalog.Catalog
	push     *notify.WebPush
	ui       notify.Broadcaster
	clients  ClientCounter
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	uiLogger *zap.Logger
	started  time.Time

	// partition -> service ID of live sessions
	mu       sync.RWMutex
	bindings map[string]string
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		store:    deps.Store,
		router:   deps.Router,
		activity: deps.Activity,
		sessions: deps.Sessions,
		catalog:  deps.Catalog,
		push:     deps.Push,
		ui:       deps.UI,
		clients:  deps.Clients,
		metrics:  deps.Metrics,
		logger:   logger,
		uiLogger: logger.Named("ui"),
		started:  time.Now(),
		bindings: make(map[string]string),
	}
}

// Root handles the liveness probe
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": version,
	})
}

// Health reports every component. It answers 503 when the storage
// coordinator cannot accept writes.
func (h *Handlers) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if !h.store.Healthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	body := gin.H{
		"status":         status,
		"uptime_seconds": time.Since(h.started).Seconds(),
		"storage":        h.store.Status(),
		"notifications": gin.H{
			"visible": h.router.Visible(),
			"tracked": h.router.Tracked(),
		},
		"sessions": h.sessions.Stats(),
		"push":     gin.H{"enabled": h.push != nil},
	}
	if h.push != nil {
		body["push"] = gin.H{"enabled": true, "subscriptions": len(h.push.Subscriptions())}
	}
	if h.clients != nil {
		body["clients"] = h.clients.Clients()
	}
	c.JSON(code, body)
}

func (h *Handlers) bind(partition, serviceID string) {
	h.mu.Lock()
	h.bindings[partition] = serviceID
	h.mu.Unlock()
}

func (h *Handlers) unbind(partition string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.bindings[partition]
	delete(h.bindings, partition)
	return id, ok
}

func (h *Handlers) serviceFor(partition string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.bindings[partition]
	return id, ok
}

// serviceIDFromPartition strips the persistent partition prefix.
func serviceIDFromPartition(partition string) string {
	return strings.TrimPrefix(partition, partitionPrefix)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
