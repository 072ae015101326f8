package handlers

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	IngestService = "saferide.ingest"
	AgentService  = "saferide.agent"
)

// HealthService publishes one named service on the standard gRPC health
// protocol. The empty service name reports the process itself and is
// always SERVING until shutdown.
type HealthService struct {
	server  *health.Server
	service string
	serving atomic.Bool
}

func NewHealthService(service string) *HealthService {
	h := &HealthService{server: health.NewServer(), service: service}
	h.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.server.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *HealthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

func (h *HealthService) SetServing(ok bool) {
	if h.serving.Swap(ok) == ok {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus(h.service, status)
	log.Info().Str("service", h.service).Str("status", status.String()).Msg("health status changed")
}

func (h *HealthService) Serving() bool {
	return h.serving.Load()
}

// Shutdown flips every service to NOT_SERVING.
func (h *HealthService) Shutdown() {
	h.server.Shutdown()
}
