package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsClient struct {
	conn     *websocket.Conn
	clientID string
	send     chan WebSocketMessage

	mu     sync.Mutex
	closed bool
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// trySend never blocks; a client that cannot keep up loses messages, and
// a closed client reports false.
func (c *wsClient) trySend(msg WebSocketMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub is the live feed: every processed record and incident is pushed to
// each connected dashboard.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient
	seq     atomic.Int64
	metrics *services.Metrics
}

func NewHub(metrics *services.Metrics) *Hub {
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	return &Hub{clients: make(map[string]*wsClient), metrics: metrics}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) BroadcastTelemetry(rec models.Telemetry) {
	h.broadcast("TELEMETRY", rec)
}

func (h *Hub) BroadcastIncident(incident models.Incident) {
	h.broadcast("INCIDENT", incident)
}

func (h *Hub) broadcast(kind string, payload interface{}) {
	msg := WebSocketMessage{Type: kind, Payload: payload, Timestamp: time.Now().Unix()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if !c.trySend(msg) {
			h.metrics.IncrementWebSocketErrors()
			log.Debug().Str("client_id", id).Msg("live feed buffer full, dropping message")
		}
	}
}

// ServeWS upgrades a dashboard connection and registers it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = fmt.Sprintf("client-%d", h.seq.Add(1))
	}
	client := &wsClient{conn: conn, clientID: clientID, send: make(chan WebSocketMessage, sendBuffer)}

	h.mu.Lock()
	if old, ok := h.clients[clientID]; ok {
		old.close()
	}
	h.clients[clientID] = client
	h.mu.Unlock()
	h.metrics.IncrementWebSocketConnections()
	log.Info().Str("client_id", clientID).Msg("websocket client connected")

	client.send <- WebSocketMessage{
		Type:      "WELCOME",
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload:   map[string]interface{}{"message": "Connected to SafeRide live feed"},
	}

	go writePump(client)
	go h.readPump(client)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if cur, ok := h.clients[c.clientID]; ok && cur == c {
		delete(h.clients, c.clientID)
	}
	h.mu.Unlock()
	c.close()
	h.metrics.DecrementWebSocketConnections()
	log.Info().Str("client_id", c.clientID).Msg("websocket client disconnected")
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.clientID).Msg("websocket read failed")
			}
			return
		}
		h.metrics.IncrementWebSocketMessages()

		switch msg.Type {
		case "PING":
			c.trySend(WebSocketMessage{Type: "PONG", ClientID: c.clientID, Timestamp: time.Now().Unix()})
		default:
			log.Debug().Str("client_id", c.clientID).Str("type", msg.Type).Msg("ignoring websocket message")
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		c.conn.Close()
		log.Debug().Str("client_id", id).Msg("closed websocket connection")
	}
	h.clients = make(map[string]*wsClient)
}

func writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
