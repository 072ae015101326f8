package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"saferide/go-backend/internal/broker"
	"saferide/go-backend/internal/clock"
	"saferide/go-backend/internal/config"
	"saferide/go-backend/internal/database"
	"saferide/go-backend/internal/handlers"
	"saferide/go-backend/internal/ingest"
	"saferide/go-backend/internal/logging"
	"saferide/go-backend/internal/models"
	"saferide/go-backend/internal/services"
	"saferide/go-backend/internal/telemetry"
)

const brokerRetryDelay = 5 * time.Second

func main() {
	cfg := config.LoadServer()

	httpPort := pflag.String("http-port", cfg.HTTPPort, "HTTP port")
	grpcPort := pflag.String("grpc-port", cfg.GRPCPort, "gRPC health port")
	brokerURL := pflag.String("broker", cfg.MQTTBroker, "MQTT broker URL")
	store := pflag.String("store", cfg.Store, "persistence backend: memory or postgres")
	pflag.Parse()

	logging.Setup(cfg.LogLevel, cfg.Environment)

	log.Info().
		Str("http_port", *httpPort).
		Str("grpc_port", *grpcPort).
		Str("broker", *brokerURL).
		Str("store", *store).
		Str("environment", cfg.Environment).
		Msg("starting SafeRide backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, *store, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open store")
	}
	defer db.Close()

	metrics := services.GetMetrics()
	hub := handlers.NewHub(metrics)
	processor := ingest.NewProcessor(db, hub, clock.Real(), metrics)

	health := handlers.NewHealthService(handlers.IngestService)
	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.MaxMessageSizeMB*1024*1024),
		grpc.MaxSendMsgSize(cfg.MaxMessageSizeMB*1024*1024),
	)
	health.Register(grpcServer)

	api := handlers.NewAPI(db, hub, metrics, health.Serving)
	httpServer := &http.Server{
		Addr:         ":" + *httpPort,
		Handler:      handlers.NewServerRouter(api, hub, metrics, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go startGRPCServer(grpcServer, *grpcPort)
	go startHTTPServer(httpServer)
	go ingestLoop(ctx, broker.Options{
		Broker:         *brokerURL,
		ClientID:       cfg.ClientID,
		QoS:            1,
		ConnectTimeout: 5 * time.Second,
	}, processor, health)

	<-ctx.Done()
	log.Info().Msg("shutting down")
	health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		log.Info().Msg("gRPC server stopped")
	case <-shutdownCtx.Done():
		log.Warn().Msg("forced gRPC shutdown")
		grpcServer.Stop()
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down HTTP server")
	} else {
		log.Info().Msg("HTTP server gracefully stopped")
	}
	hub.Close()

	log.Info().Msg("goodbye")
}

func openStore(ctx context.Context, kind string, cfg *config.Server) (database.Store, error) {
	switch kind {
	case "memory":
		log.Info().Msg("using in-memory store")
		return database.NewMemory(), nil
	case "postgres":
		log.Info().Str("dsn", cfg.DSNForLog()).Msg("using postgres store")
		pg, err := database.NewPostgres(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	return nil, fmt.Errorf("unknown store %q", kind)
}

// ingestLoop keeps a subscription to every vehicle's telemetry topic. The
// ingest service reports SERVING only while the subscription is live.
func ingestLoop(ctx context.Context, opts broker.Options, processor *ingest.Processor, health *handlers.HealthService) {
	for ctx.Err() == nil {
		err := subscribeOnce(ctx, opts, processor, health)
		health.SetServing(false)
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Dur("retry_in", brokerRetryDelay).Msg("telemetry subscription down")

		select {
		case <-ctx.Done():
			return
		case <-time.After(brokerRetryDelay):
		}
	}
}

func subscribeOnce(ctx context.Context, opts broker.Options, processor *ingest.Processor, health *handlers.HealthService) error {
	client, err := broker.Connect(opts)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Subscribe(telemetry.WildcardTopic, func(msg broker.Message) {
		result, err := processor.Handle(ctx, msg.Payload)
		if errors.Is(err, models.ErrMalformedMessage) {
			log.Warn().Err(err).Str("topic", msg.Topic).Msg("dropping telemetry")
			return
		} else if err != nil {
			log.Error().Err(err).Str("topic", msg.Topic).Msg("could not process telemetry")
			return
		}
		log.Debug().
			Str("vehicle_id", result.Record.VehicleID).
			Str("status", result.Record.Status).
			Bool("incident", result.Incident != nil).
			Int("points_awarded", result.PointsAwarded).
			Msg("telemetry processed")
	})
	if err != nil {
		return err
	}
	health.SetServing(true)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-client.Lost():
		return err
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
	log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("failed to serve HTTP")
	}
}
