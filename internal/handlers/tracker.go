package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/agent"
	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
)

// TrackerMessage is what the landmark tracker sends. Points are [x, y]
// pairs in normalised image coordinates.
type TrackerMessage struct {
	Type     string             `json:"type"`
	Points   models.LandmarkSet `json:"points,omitempty"`
	Sequence uint64             `json:"sequence,omitempty"`
}

// StatusPayload is the overlay data returned for every processed frame.
type StatusPayload struct {
	Status         models.DriverStatus `json:"status"`
	Rule           string              `json:"rule"`
	EAR            float64             `json:"ear"`
	MAR            float64             `json:"mar"`
	HeadOffset     float64             `json:"head_offset"`
	EyeClosed      uint                `json:"eye_closed_frames"`
	HeadTurned     uint                `json:"head_turned_frames"`
	SneezeFiltered bool                `json:"sneeze_filtered"`
	Face           bool                `json:"face"`
	Skipped        bool                `json:"skipped"`
	Published      bool                `json:"published"`
	Sequence       uint64              `json:"sequence"`
}

func NewStatusPayload(seq uint64, o agent.Outcome) StatusPayload {
	return StatusPayload{
		Status:         o.Status,
		Rule:           string(o.Rule),
		EAR:            o.Ratios.EyeOpenness,
		MAR:            o.Ratios.MouthOpenness,
		HeadOffset:     o.Ratios.HeadOffset,
		EyeClosed:      o.Counters.EyeClosedFrames,
		HeadTurned:     o.Counters.HeadTurnedFrames,
		SneezeFiltered: o.SneezeFiltered,
		Face:           o.Face,
		Skipped:        o.Skipped,
		Published:      o.Published,
		Sequence:       seq,
	}
}

// Tracker accepts landmark frames over a WebSocket and feeds them to the
// sensing loop. A QUIT message ends the agent.
type Tracker struct {
	frames    chan<- agent.Frame
	quit      func()
	health    *HealthService
	metrics   *services.Metrics
	readLimit int64
	stop      chan struct{}
	stopOnce  sync.Once
	active    atomic.Int32
	seq       atomic.Int64
}

func NewTracker(frames chan<- agent.Frame, quit func(), health *HealthService, metrics *services.Metrics, readLimit int64) *Tracker {
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	return &Tracker{
		frames:    frames,
		quit:      quit,
		health:    health,
		metrics:   metrics,
		readLimit: readLimit,
		stop:      make(chan struct{}),
	}
}

// Stop releases readers blocked on a sensing loop that is no longer
// consuming frames.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) Active() int {
	return int(t.active.Load())
}

func (t *Tracker) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("tracker upgrade failed")
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = fmt.Sprintf("tracker-%d", t.seq.Add(1))
	}
	client := &wsClient{conn: conn, clientID: clientID, send: make(chan WebSocketMessage, sendBuffer)}

	if t.active.Add(1) == 1 && t.health != nil {
		t.health.SetServing(true)
	}
	t.metrics.IncrementWebSocketConnections()
	log.Info().Str("client_id", clientID).Msg("tracker connected")

	client.send <- WebSocketMessage{
		Type:      "WELCOME",
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload:   map[string]interface{}{"message": "Connected to SafeRide agent"},
	}

	go writePump(client)
	t.readPump(r.Context(), client)
}

func (t *Tracker) readPump(ctx context.Context, c *wsClient) {
	defer func() {
		if t.active.Add(-1) == 0 && t.health != nil {
			t.health.SetServing(false)
		}
		t.metrics.DecrementWebSocketConnections()
		c.close()
		c.conn.Close()
		log.Info().Str("client_id", c.clientID).Msg("tracker disconnected")
	}()

	if t.readLimit > 0 {
		c.conn.SetReadLimit(t.readLimit)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg TrackerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				t.metrics.IncrementWebSocketErrors()
				log.Warn().Err(err).Str("client_id", c.clientID).Msg("tracker read failed")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		t.metrics.IncrementWebSocketMessages()

		switch msg.Type {
		case "LANDMARKS", "NO_FACE":
			landmarks := msg.Points
			if msg.Type == "NO_FACE" {
				landmarks = nil
			}
			seq := msg.Sequence
			frame := agent.Frame{
				Landmarks: landmarks,
				Sequence:  seq,
				Reply: func(o agent.Outcome) {
					c.trySend(WebSocketMessage{
						Type:      "STATUS",
						ClientID:  c.clientID,
						Timestamp: time.Now().Unix(),
						Payload:   NewStatusPayload(seq, o),
					})
				},
			}
			select {
			case t.frames <- frame:
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			}

		case "PING":
			c.trySend(WebSocketMessage{Type: "PONG", ClientID: c.clientID, Timestamp: time.Now().Unix()})

		case "QUIT":
			log.Info().Str("client_id", c.clientID).Msg("quit requested by tracker")
			if t.quit != nil {
				t.quit()
			}
			return

		default:
			log.Debug().Str("client_id", c.clientID).Str("type", msg.Type).Msg("unknown tracker message")
		}
	}
}
