package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// HealthClient asks a SafeRide process whether one of its services is up.
type HealthClient struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
	url    string
}

func NewHealthClient(url string) (*HealthClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.NewClient(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not create health client for %s: %w", url, err)
	}
	log.Debug().Str("url", url).Msg("health client ready")

	return &HealthClient{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
		url:    url,
	}, nil
}

// Check returns the serving status of service. The empty name asks about
// the process as a whole.
func (hc *HealthClient) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := hc.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check %q at %s: %w", service, hc.url, err)
	}
	return resp.GetStatus(), nil
}

func (hc *HealthClient) Serving(ctx context.Context, service string) bool {
	status, err := hc.Check(ctx, service)
	return err == nil && status == healthpb.HealthCheckResponse_SERVING
}

func (hc *HealthClient) Close() error {
	if hc.conn != nil {
		return hc.conn.Close()
	}
	return nil
}
