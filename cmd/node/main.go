package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"saferide/go-backend/internal/aggregator"
	"saferide/go-backend/internal/broker"
	"saferide/go-backend/internal/clock"
	"saferide/go-backend/internal/config"
	"saferide/go-backend/internal/display"
	"saferide/go-backend/internal/logging"
	"saferide/go-backend/internal/node"
	"saferide/go-backend/internal/services"
	"saferide/go-backend/internal/telemetry"
	"saferide/go-backend/internal/vehicle"
)

// crlfWriter restores carriage returns that raw mode stops adding.
type crlfWriter struct {
	out io.Writer
}

func (w crlfWriter) Write(p []byte) (int, error) {
	if _, err := w.out.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

type runner struct {
	loop   *node.Loop
	client *broker.Client
}

func (r *runner) Run(ctx context.Context) error {
	return r.loop.Run(ctx)
}

func (r *runner) Close() {
	r.client.Close()
}

func main() {
	cfg := config.LoadNode()

	vehicleID := pflag.String("vehicle", cfg.VehicleID, "vehicle identifier")
	brokerURL := pflag.String("broker", cfg.MQTTBroker, "MQTT broker URL")
	logFile := pflag.String("log-file", "", "write logs to this file instead of stderr")
	pflag.Parse()
	cfg.SetVehicle(*vehicleID)

	logging.Setup(cfg.LogLevel, cfg.Environment)
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open log file")
		}
		defer f.Close()
		log.Logger = log.Output(f)
	}

	restore, err := display.RawMode(os.Stdin)
	if err != nil {
		log.Fatal().Err(err).Msg("could not take over the keyboard")
	}
	defer restore()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	keyboard := display.NewKeyboard()
	go func() {
		err := keyboard.Run(os.Stdin)
		if err != nil && !errors.Is(err, display.ErrInterrupted) {
			log.Error().Err(err).Msg("keyboard stopped")
		}
		cancel()
	}()

	screen := display.NewStatusRenderer(display.NewTerminal(crlfWriter{out: os.Stdout}, true))
	metrics := services.GetMetrics()
	sampler := vehicle.RandomHeartRate(rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)))

	build := func(ctx context.Context) (node.Runner, error) {
		if err := screen.Connecting(*brokerURL); err != nil {
			return nil, err
		}
		client, err := broker.Connect(broker.Options{
			Broker:         *brokerURL,
			ClientID:       cfg.ClientID,
			ConnectTimeout: 5 * time.Second,
		})
		if err != nil {
			return nil, err
		}

		mailbox := broker.NewMailbox(cfg.MailboxDepth)
		if err := client.Subscribe(telemetry.Topic(*vehicleID), mailbox.Deliver); err != nil {
			client.Close()
			return nil, err
		}

		source := vehicle.NewSource(keyboard.Inputs(), vehicle.SourceConfig{
			HeartRateThreshold: cfg.HeartRateThreshold,
			Interval:           cfg.PublishInterval,
			Sampler:            sampler,
		})
		loop := node.NewLoop(node.Config{
			VehicleID:    *vehicleID,
			Location:     cfg.Location,
			PollInterval: cfg.PollInterval,
		}, node.Deps{
			Mailbox:    mailbox,
			Source:     source,
			Aggregator: aggregator.New(screen),
			Sender:     client,
			Lost:       client.Lost(),
			Clock:      clock.Real(),
			Metrics:    metrics,
		})
		return &runner{loop: loop, client: client}, nil
	}

	supervisor := &node.Supervisor{
		Build:  build,
		Screen: screen,
		Delay:  cfg.RestartDelay,
	}
	log.Info().Str("vehicle_id", *vehicleID).Str("client_id", cfg.ClientID).Str("broker", *brokerURL).Msg("starting SafeRide node")

	if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("node stopped")
	}
	log.Info().Int64("malformed", metrics.GetMalformed()).Msg("goodbye")
}
