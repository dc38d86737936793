// Package realtime fans rack events out to websocket clients. Clients
// authenticate before the upgrade, then join per-rack rooms with
// subscribe/unsubscribe messages.
package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"growrack/internal/apperr"
	"growrack/internal/automation"
	"growrack/internal/logging"
	"growrack/internal/metrics"
	"growrack/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// sendBuffer bounds how far a slow client may lag before events
	// are dropped for it.
	sendBuffer = 32
)

// TokenVerifier resolves a bearer token to the user it belongs to.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (int64, error)
}

// RackDirectory answers ownership checks for subscribe requests.
type RackDirectory interface {
	GetRackByID(ctx context.Context, id int64) (*models.Rack, error)
}

// Event is the envelope every server push uses.
type Event struct {
	Type   string    `json:"type"`
	RackID int64     `json:"rackId,omitempty"`
	Code   string    `json:"code,omitempty"`
	Data   any       `json:"data,omitempty"`
	Ts     time.Time `json:"ts"`
}

type clientMessage struct {
	Type   string `json:"type"`
	RackID int64  `json:"rackId"`
}

// Hub tracks connected clients and their per-rack rooms.
type Hub struct {
	log    zerolog.Logger
	tokens TokenVerifier
	racks  RackDirectory

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	rooms   map[int64]map[*client]struct{}
	closed  bool
}

// NewHub wires the broadcaster.
func NewHub(tokens TokenVerifier, racks RackDirectory) *Hub {
	return &Hub{
		log:    logging.WithComponent("realtime"),
		tokens: tokens,
		racks:  racks,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		rooms:   make(map[int64]map[*client]struct{}),
	}
}

type client struct {
	id     string
	userID int64
	conn   *websocket.Conn
	send   chan Event
	done   chan struct{}
	once   sync.Once
}

// close signals the write pump and tears the socket down. The send
// channel is never closed so concurrent broadcasts stay safe.
func (cl *client) close() {
	cl.once.Do(func() {
		close(cl.done)
		cl.conn.Close()
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

// HandleWS authenticates the request and, on success, upgrades it and
// runs the read loop until the client goes away.
func (h *Hub) HandleWS(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{"code": "AUTH_MISSING", "message": "missing bearer token"},
		})
		return
	}

	userID, err := h.tokens.VerifyToken(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": gin.H{"code": "AUTH_INVALID", "message": "invalid or expired token"},
		})
		return
	}

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{"code": "SHUTTING_DOWN", "message": "server is shutting down"},
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := &client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan Event, sendBuffer),
		done:   make(chan struct{}),
	}
	h.register(cl)
	h.log.Debug().Str("client_id", cl.id).Int64("user_id", userID).Msg("client connected")

	go h.writePump(cl)
	h.readPump(c.Request.Context(), cl)
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	metrics.WSClients.Inc()
}

// unregister drops the client from every room it joined.
func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, cl)
	for rackID, room := range h.rooms {
		if _, ok := room[cl]; ok {
			delete(room, cl)
			if len(room) == 0 {
				delete(h.rooms, rackID)
			}
		}
	}
	h.mu.Unlock()

	metrics.WSClients.Dec()
	cl.close()
	h.log.Debug().Str("client_id", cl.id).Msg("client disconnected")
}

func (h *Hub) readPump(ctx context.Context, cl *client) {
	defer h.unregister(cl)

	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg clientMessage
		if err := cl.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Str("client_id", cl.id).Err(err).Msg("read loop ended")
			}
			return
		}

		switch msg.Type {
		case "subscribe":
			h.subscribe(ctx, cl, msg.RackID)
		case "unsubscribe":
			h.unsubscribe(cl, msg.RackID)
		default:
			cl.enqueue(h.log, Event{Type: "error", Code: "BAD_MESSAGE", Ts: time.Now().UTC()})
		}
	}
}

// subscribe joins the rack's room after an ownership check. Failures
// come back as error events; the connection stays up.
func (h *Hub) subscribe(ctx context.Context, cl *client, rackID int64) {
	rack, err := h.racks.GetRackByID(ctx, rackID)
	if err != nil {
		code := "INTERNAL"
		if apperr.Is(err, apperr.KindNotFound) {
			code = "NOT_FOUND"
		} else {
			h.log.Error().Int64("rack_id", rackID).Err(err).Msg("ownership lookup failed")
		}
		cl.enqueue(h.log, Event{Type: "error", RackID: rackID, Code: code, Ts: time.Now().UTC()})
		return
	}
	if rack.OwnerID != cl.userID {
		cl.enqueue(h.log, Event{Type: "error", RackID: rackID, Code: "FORBIDDEN", Ts: time.Now().UTC()})
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[rackID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[rackID] = room
	}
	room[cl] = struct{}{}
	h.mu.Unlock()

	cl.enqueue(h.log, Event{Type: "subscribed", RackID: rackID, Ts: time.Now().UTC()})
}

func (h *Hub) unsubscribe(cl *client, rackID int64) {
	h.mu.Lock()
	if room, ok := h.rooms[rackID]; ok {
		delete(room, cl)
		if len(room) == 0 {
			delete(h.rooms, rackID)
		}
	}
	h.mu.Unlock()

	cl.enqueue(h.log, Event{Type: "unsubscribed", RackID: rackID, Ts: time.Now().UTC()})
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.close()
	}()

	for {
		select {
		case ev := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cl.done:
			return
		}
	}
}

// enqueue hands the event to the write pump without blocking. A full
// buffer means this client is too slow; the event is dropped for it
// and everyone else is unaffected.
func (cl *client) enqueue(log zerolog.Logger, ev Event) {
	select {
	case cl.send <- ev:
	case <-cl.done:
	default:
		log.Warn().Str("client_id", cl.id).Str("event_type", ev.Type).Msg("client buffer full, dropping event")
	}
}

// broadcast delivers one event to every member of the rack's room.
// An empty room is a no-op.
func (h *Hub) broadcast(rackID int64, ev Event) {
	h.mu.RLock()
	room := h.rooms[rackID]
	members := make([]*client, 0, len(room))
	for cl := range room {
		members = append(members, cl)
	}
	h.mu.RUnlock()

	if len(members) == 0 {
		return
	}
	metrics.EventsBroadcast.WithLabelValues(ev.Type).Inc()
	for _, cl := range members {
		cl.enqueue(h.log, ev)
	}
}

// RackReading pushes a fresh sensor reading to the rack's room.
func (h *Hub) RackReading(rackID int64, r models.Reading) {
	h.broadcast(rackID, Event{Type: "reading", RackID: rackID, Data: r, Ts: time.Now().UTC()})
}

// RackStatus pushes a liveness transition to the rack's room.
func (h *Hub) RackStatus(rackID int64, status models.DeviceStatus, at time.Time) {
	h.broadcast(rackID, Event{
		Type:   "status",
		RackID: rackID,
		Data:   map[string]any{"status": status, "at": at},
		Ts:     time.Now().UTC(),
	})
}

// RackNotification pushes an alert or warning to the rack's room.
func (h *Hub) RackNotification(n models.Notification) {
	h.broadcast(n.RackID, Event{Type: "notification", RackID: n.RackID, Data: n, Ts: time.Now().UTC()})
}

// RackAutomation pushes a rule-execution summary to the rack's room.
func (h *Hub) RackAutomation(rackID int64, s automation.ExecutionSummary) {
	h.broadcast(rackID, Event{Type: "automation", RackID: rackID, Data: s, Ts: time.Now().UTC()})
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close rejects new connections and tears down every client socket.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	members := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		members = append(members, cl)
	}
	h.clients = make(map[*client]struct{})
	h.rooms = make(map[int64]map[*client]struct{})
	h.mu.Unlock()

	for _, cl := range members {
		metrics.WSClients.Dec()
		cl.close()
	}
	h.log.Info().Int("clients", len(members)).Msg("realtime hub closed")
}
