package services

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthClientCheck(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("saferide.test", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go srv.Serve(lis)
	defer srv.Stop()

	hc, err := NewHealthClient(lis.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer hc.Close()

	ctx := context.Background()
	if !hc.Serving(ctx, "") {
		t.Fatal("process should report SERVING")
	}
	if hc.Serving(ctx, "saferide.test") {
		t.Fatal("service should report NOT_SERVING")
	}

	hs.SetServingStatus("saferide.test", healthpb.HealthCheckResponse_SERVING)
	if !hc.Serving(ctx, "saferide.test") {
		t.Fatal("service should report SERVING after the flip")
	}

	if _, err := hc.Check(ctx, "no.such.service"); err == nil {
		t.Fatal("unknown service should fail")
	}
}
