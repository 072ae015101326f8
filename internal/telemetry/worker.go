package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"

	"saferide/go-backend/internal/services"
)

// Sender is the transport side of publishing.
type Sender interface {
	Publish(topic string, payload []byte) error
}

// Dispatcher accepts a payload for sending without waiting for it.
type Dispatcher interface {
	Dispatch(topic string, payload []byte) bool
}

type envelope struct {
	topic   string
	payload []byte
}

// Worker performs transport sends on its own goroutine so a slow or dead
// broker never stalls the caller. When the queue is full new payloads are
// dropped rather than queued.
type Worker struct {
	sender  Sender
	queue   chan envelope
	metrics *services.Metrics
}

func NewWorker(sender Sender, depth int, metrics *services.Metrics) *Worker {
	if depth < 1 {
		depth = 1
	}
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	return &Worker{
		sender:  sender,
		queue:   make(chan envelope, depth),
		metrics: metrics,
	}
}

func (w *Worker) Dispatch(topic string, payload []byte) bool {
	select {
	case w.queue <- envelope{topic: topic, payload: payload}:
		return true
	default:
		w.metrics.IncrementDropped()
		log.Debug().Str("topic", topic).Msg("publish queue full, dropping payload")
		return false
	}
}

// Run sends queued payloads until ctx is cancelled. Send failures are
// logged and counted, never returned.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-w.queue:
			if err := w.sender.Publish(env.topic, env.payload); err != nil {
				w.metrics.IncrementTransportErrors()
				log.Warn().Err(err).Str("topic", env.topic).Msg("telemetry send failed")
				continue
			}
			w.metrics.IncrementSent()
		}
	}
}
