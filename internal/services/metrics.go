package services

import (
	"sync"
	"sync/atomic"
	"time"
)

type Metrics struct {
	startedAt time.Time

	totalCycles   atomic.Int64
	skippedCycles atomic.Int64
	noFaceCycles  atomic.Int64
	alertCycles   atomic.Int64
	lastCycleTime atomic.Int64

	publishAttempts atomic.Int64
	publishSent     atomic.Int64
	publishDropped  atomic.Int64
	transportErrors atomic.Int64

	messages  atomic.Int64
	malformed atomic.Int64
	incidents atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
	wsErrors      atomic.Int64
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = NewMetrics()
	})
	return metricsInstance
}

func (m *Metrics) IncrementCycles(alert bool) {
	m.totalCycles.Add(1)
	if alert {
		m.alertCycles.Add(1)
	}
	m.lastCycleTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementSkipped() {
	m.skippedCycles.Add(1)
}

func (m *Metrics) IncrementNoFace() {
	m.noFaceCycles.Add(1)
}

func (m *Metrics) IncrementPublishAttempts() {
	m.publishAttempts.Add(1)
}

func (m *Metrics) IncrementSent() {
	m.publishSent.Add(1)
}

func (m *Metrics) IncrementDropped() {
	m.publishDropped.Add(1)
}

func (m *Metrics) IncrementTransportErrors() {
	m.transportErrors.Add(1)
}

func (m *Metrics) IncrementMessages() {
	m.messages.Add(1)
}

func (m *Metrics) IncrementMalformed() {
	m.malformed.Add(1)
}

func (m *Metrics) IncrementIncidents() {
	m.incidents.Add(1)
}

func (m *Metrics) GetTotalCycles() int64 {
	return m.totalCycles.Load()
}

func (m *Metrics) GetSent() int64 {
	return m.publishSent.Load()
}

func (m *Metrics) GetDropped() int64 {
	return m.publishDropped.Load()
}

func (m *Metrics) GetTransportErrors() int64 {
	return m.transportErrors.Load()
}

func (m *Metrics) GetMalformed() int64 {
	return m.malformed.Load()
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Add(1)
}

// DecrementWebSocketConnections decrements WebSocket connection count
func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Add(-1)
}

// GetWebSocketConnections returns current WebSocket connections
func (m *Metrics) GetWebSocketConnections() int64 {
	return m.wsConnections.Load()
}

// IncrementWebSocketMessages increments WebSocket message count
func (m *Metrics) IncrementWebSocketMessages() {
	m.wsMessages.Add(1)
}

// IncrementWebSocketErrors increments WebSocket error count
func (m *Metrics) IncrementWebSocketErrors() {
	m.wsErrors.Add(1)
}

// Snapshot returns every counter keyed by its JSON name.
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"total_cycles":      m.totalCycles.Load(),
		"skipped_cycles":    m.skippedCycles.Load(),
		"no_face_cycles":    m.noFaceCycles.Load(),
		"alert_cycles":      m.alertCycles.Load(),
		"last_cycle_time":   m.lastCycleTime.Load(),
		"publish_attempts":  m.publishAttempts.Load(),
		"publish_sent":      m.publishSent.Load(),
		"publish_dropped":   m.publishDropped.Load(),
		"transport_errors":  m.transportErrors.Load(),
		"messages":          m.messages.Load(),
		"malformed":         m.malformed.Load(),
		"incidents":         m.incidents.Load(),
		"system_uptime_sec": int64(m.Uptime().Seconds()),
		"websocket": map[string]interface{}{
			"connections": m.wsConnections.Load(),
			"messages":    m.wsMessages.Load(),
			"errors":      m.wsErrors.Load(),
		},
	}
}
