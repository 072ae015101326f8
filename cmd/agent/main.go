package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"saferide/go-backend/internal/agent"
	"saferide/go-backend/internal/broker"
	"saferide/go-backend/internal/clock"
	"saferide/go-backend/internal/config"
	"saferide/go-backend/internal/detector"
	"saferide/go-backend/internal/geometry"
	"saferide/go-backend/internal/handlers"
	"saferide/go-backend/internal/logging"
	"saferide/go-backend/internal/services"
	"saferide/go-backend/internal/telemetry"
)

const brokerRetryDelay = 5 * time.Second

// liveSender publishes through whichever broker client is currently
// connected. With none, sends fail and the worker counts them.
type liveSender struct {
	client atomic.Pointer[broker.Client]
}

func (s *liveSender) Publish(topic string, payload []byte) error {
	c := s.client.Load()
	if c == nil {
		return broker.ErrUnavailable
	}
	return c.Publish(topic, payload)
}

func (s *liveSender) Up() bool {
	c := s.client.Load()
	return c != nil && c.Connected()
}

func main() {
	cfg := config.LoadAgent()

	vehicleID := pflag.String("vehicle", cfg.VehicleID, "vehicle identifier")
	httpPort := pflag.String("http-port", cfg.HTTPPort, "tracker link port")
	grpcPort := pflag.String("grpc-port", cfg.GRPCPort, "gRPC health port")
	brokerURL := pflag.String("broker", cfg.MQTTBroker, "MQTT broker URL")
	interval := pflag.Duration("publish-interval", cfg.PublishInterval, "minimum time between telemetry messages")
	pflag.Parse()
	cfg.SetVehicle(*vehicleID)

	logging.Setup(cfg.LogLevel, cfg.Environment)

	log.Info().
		Str("vehicle_id", *vehicleID).
		Str("client_id", cfg.ClientID).
		Str("http_port", *httpPort).
		Str("grpc_port", *grpcPort).
		Str("broker", *brokerURL).
		Dur("publish_interval", *interval).
		Msg("starting SafeRide agent")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := services.GetMetrics()
	sender := &liveSender{}
	worker := telemetry.NewWorker(sender, cfg.QueueDepth, metrics)
	go worker.Run(ctx)
	go connectLoop(ctx, broker.Options{
		Broker:         *brokerURL,
		ClientID:       cfg.ClientID,
		ConnectTimeout: 5 * time.Second,
	}, sender)

	publisher := telemetry.NewPublisher(telemetry.PublisherConfig{
		VehicleID: *vehicleID,
		Location:  cfg.Location,
		Interval:  *interval,
	}, worker, metrics)
	session := detector.NewSession(cfg.Thresholds, geometry.MediaPipeLayout)
	loop := agent.NewLoop(session, publisher, clock.Real(), metrics)

	frames := make(chan agent.Frame)
	health := handlers.NewHealthService(handlers.AgentService)
	tracker := handlers.NewTracker(frames, cancel, health, metrics, int64(cfg.MaxMessageSizeMB)*1024*1024)

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.MaxMessageSizeMB*1024*1024),
		grpc.MaxSendMsgSize(cfg.MaxMessageSizeMB*1024*1024),
	)
	health.Register(grpcServer)

	httpServer := &http.Server{
		Addr:        ":" + *httpPort,
		Handler:     handlers.NewAgentRouter(tracker, metrics, sender.Up),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go startGRPCServer(grpcServer, *grpcPort)
	go startHTTPServer(httpServer)

	if err := loop.Run(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("sensing loop stopped")
	}
	tracker.Stop()
	health.Shutdown()
	log.Info().
		Int64("cycles", metrics.GetTotalCycles()).
		Int64("sent", metrics.GetSent()).
		Int64("dropped", metrics.GetDropped()).
		Msg("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	grpcServer.GracefulStop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down HTTP server")
	}
	if c := sender.client.Swap(nil); c != nil {
		c.Close()
	}
	log.Info().Msg("goodbye")
}

// connectLoop keeps one broker client in sender, replacing it whenever the
// connection drops.
func connectLoop(ctx context.Context, opts broker.Options, sender *liveSender) {
	for ctx.Err() == nil {
		client, err := broker.Connect(opts)
		if err == nil {
			sender.client.Store(client)
			select {
			case <-ctx.Done():
				return
			case err = <-client.Lost():
			}
			sender.client.CompareAndSwap(client, nil)
			client.Close()
		}
		log.Warn().Err(err).Dur("retry_in", brokerRetryDelay).Msg("broker unavailable, telemetry paused")

		select {
		case <-ctx.Done():
			return
		case <-time.After(brokerRetryDelay):
		}
	}
}

func startGRPCServer(server *grpc.Server, port string) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		log.Fatal().Err(err).Str("port", port).Msg("failed to listen on gRPC port")
	}
	log.Info().Str("port", port).Msg("gRPC health server listening")

	if err := server.Serve(lis); err != nil {
		log.Fatal().Err(err).Msg("failed to serve gRPC")
	}
}

func startHTTPServer(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("tracker link listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("failed to serve HTTP")
	}
}
