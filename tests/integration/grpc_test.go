package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"saferide/go-backend/internal/models"
)

// These tests expect a running backend and agent. Enable them with
// SAFERIDE_INTEGRATION=1.
func requireStack(t *testing.T) {
	t.Helper()
	if os.Getenv("SAFERIDE_INTEGRATION") != "1" {
		t.Skip("SAFERIDE_INTEGRATION not set")
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func checkHealth(t *testing.T, addr, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("did not connect: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("health check %q failed: %v", service, err)
	}
	return resp.GetStatus()
}

func TestBackendIngestServing(t *testing.T) {
	requireStack(t)

	addr := env("SAFERIDE_BACKEND_GRPC", "localhost:50051")
	if status := checkHealth(t, addr, ""); status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("backend process status = %s", status)
	}
	if status := checkHealth(t, addr, "saferide.ingest"); status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("ingest status = %s, is the broker up?", status)
	}
}

func TestAgentProcessServing(t *testing.T) {
	requireStack(t)

	addr := env("SAFERIDE_AGENT_GRPC", "localhost:50052")
	if status := checkHealth(t, addr, ""); status != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("agent process status = %s", status)
	}
}

func TestBackendHTTPHealth(t *testing.T) {
	requireStack(t)

	url := env("SAFERIDE_BACKEND_HTTP", "http://localhost:8080") + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var status models.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if !status.Broker {
		t.Errorf("backend reports broker down: %+v", status)
	}
	t.Logf("health: %+v", status)
}
