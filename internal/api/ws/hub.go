package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TextNexus/backend/internal/shared/id"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	TypePing  = "ping"
	TypePong  = "pong"
	TypeError = "error"

	resultSuffix = ".result"
)

// ErrHubClosed is returned by ServeHTTP once Close has been called.
var ErrHubClosed = errors.New("ws: hub closed")

// Dispatcher handles inbound messages. A non-nil result is sent back to
// the originating client as "<type>.result".
type Dispatcher interface {
	Dispatch(ctx context.Context, msgType string, data []byte) (any, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msgType string, data []byte) (any, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, msgType string, data []byte) (any, error) {
	return f(ctx, msgType, data)
}

// Inbound is a message from a client.
type Inbound struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is a message to a client.
type Outbound struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Config tunes connection handling.
type Config struct {
	SendBuffer      int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageSize  int64
	DispatchTimeout time.Duration
}

// DefaultConfig returns the connection defaults.
func DefaultConfig() Config {
	return Config{
		SendBuffer:      64,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		PingPeriod:      54 * time.Second,
		MaxMessageSize:  4 << 20,
		DispatchTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = d.DispatchTimeout
	}
	return c
}

type client struct {
	id   id.ClientID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Hub keeps the render clients connected over /stream. It fans UI events
// out to every client and feeds client messages to the dispatcher.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	dispatcher Dispatcher
	clients    map[*client]struct{}
	closed     bool
}

// NewHub creates a hub. The dispatcher may be set later with SetDispatcher;
// until then inbound messages other than ping are answered with an error.
func NewHub(dispatcher Dispatcher, cfg Config, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg: cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			// The shell UI is served from file:// and custom schemes
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		dispatcher: dispatcher,
		clients:    make(map[*client]struct{}),
	}
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// SetDispatcher replaces the inbound message handler.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.mu.Lock()
	h.dispatcher = d
	h.mu.Unlock()
}

// Handle upgrades a gin request.
func (h *Hub) Handle(c *gin.Context) {
	h.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP upgrades the connection and starts its pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   id.NewClientID(),
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.wg.Add(2)
	h.mu.Unlock()

	h.metrics.IncWSConnections()
	h.logger.Info("Client connected",
		zap.String("client_id", c.id.String()),
		zap.Int("clients", count),
	)

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast sends an event to every client and returns how many accepted
// it. A client whose send buffer is full is disconnected.
func (h *Hub) Broadcast(event string, payload any) int {
	msg, err := sonic.Marshal(Outbound{Type: event, Data: payload, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("event", event), zap.Error(err))
		return 0
	}

	var slow []*client
	delivered := 0

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
			delivered++
		case <-c.done:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow client", zap.String("client_id", c.id.String()))
		h.remove(c)
	}

	if delivered > 0 {
		h.metrics.RecordWSMessage("out", event)
	}
	return delivered
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their pumps to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.cancel()
	for _, c := range clients {
		h.remove(c)
	}
	h.wg.Wait()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	c.stop()
	if !ok {
		return
	}

	h.metrics.DecWSConnections()
	h.logger.Info("Client disconnected",
		zap.String("client_id", c.id.String()),
		zap.Int("clients", count),
	)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		h.wg.Done()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("client_id", c.id.String()), zap.Error(err))
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait),
			)
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		h.wg.Done()
	}()

	c.conn.SetReadLimit(h.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read error", zap.String("client_id", c.id.String()), zap.Error(err))
			}
			return
		}
		// Pings from the client also count as liveness
		_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		h.handle(c, data)
	}
}

func (h *Hub) handle(c *client, data []byte) {
	var msg Inbound
	if err := sonic.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		h.reply(c, Outbound{Type: TypeError, Data: errorData("", "invalid message")})
		return
	}
	h.metrics.RecordWSMessage("in", msg.Type)

	if msg.Type == TypePing {
		h.reply(c, Outbound{Type: TypePong, ID: msg.ID})
		return
	}

	h.mu.RLock()
	d := h.dispatcher
	h.mu.RUnlock()
	if d == nil {
		h.reply(c, Outbound{Type: TypeError, ID: msg.ID, Data: errorData(msg.Type, "not ready")})
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.cfg.DispatchTimeout)
	defer cancel()

	result, err := d.Dispatch(ctx, msg.Type, msg.Data)
	if err != nil {
		h.logger.Debug("Message rejected",
			zap.String("client_id", c.id.String()),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		h.reply(c, Outbound{Type: TypeError, ID: msg.ID, Data: errorData(msg.Type, err.Error())})
		return
	}
	if result != nil {
		h.reply(c, Outbound{Type: msg.Type + resultSuffix, ID: msg.ID, Data: result})
	}
}

func errorData(request, message string) map[string]string {
	d := map[string]string{"message": message}
	if request != "" {
		d["request"] = request
	}
	return d
}

// reply queues a message for one client. It gives up when the buffer is
// full rather than blocking the read loop.
func (h *Hub) reply(c *client, out Outbound) {
	out.Timestamp = time.Now().UnixMilli()
	msg, err := sonic.Marshal(out)
	if err != nil {
		h.logger.Error("Failed to encode reply", zap.String("type", out.Type), zap.Error(err))
		return
	}
	select {
	case c.send <- msg:
		h.metrics.RecordWSMessage("out", out.Type)
	case <-c.done:
	default:
		h.logger.Warn("Reply dropped, send buffer full", zap.String("client_id", c.id.String()))
	}
}
