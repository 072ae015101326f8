package aggregator

import (
	"errors"
	"testing"

	"saferide/go-backend/internal/models"
)

type recorder struct {
	frames []DisplayState
}

func (r *recorder) Render(s DisplayState) error {
	r.frames = append(r.frames, s)
	return nil
}

func TestInitialStateUnknown(t *testing.T) {
	a := New(nil)
	if got := a.State(); got.Driver != models.DriverUnknown || got.Vehicle != models.VehicleUnknown {
		t.Fatalf("initial state = %+v", got)
	}
}

func TestHandleMessageRoutesByStream(t *testing.T) {
	rec := &recorder{}
	a := New(rec)

	if err := a.HandleMessage([]byte(`{"status":"drowsy"}`)); err != nil {
		t.Fatal(err)
	}
	if err := a.HandleMessage([]byte(`{"status":"harsh turn","heart_rate":70}`)); err != nil {
		t.Fatal(err)
	}

	want := DisplayState{Driver: models.DriverDrowsy, Vehicle: models.VehicleHarshTurn}
	if got := a.State(); got != want {
		t.Fatalf("state = %+v, want %+v", got, want)
	}
	if len(rec.frames) != 2 {
		t.Fatalf("rendered %d times, want 2", len(rec.frames))
	}
}

func TestHandleMessageAliases(t *testing.T) {
	for _, token := range []string{"safe_vehicle", "SAFE_VEHICLE", "Safe-Vehicle"} {
		a := New(nil)
		if err := a.HandleMessage([]byte(`{"status":"` + token + `"}`)); err != nil {
			t.Fatalf("%q: %v", token, err)
		}
		if a.State().Vehicle != models.VehicleSafe || a.State().Driver != models.DriverUnknown {
			t.Fatalf("%q: state = %+v", token, a.State())
		}
	}
}

func TestHandleMessageIdempotent(t *testing.T) {
	a := New(nil)
	msg := []byte(`{"vehicle_id":"v-101","timestamp":1,"status":"fatigue"}`)

	if err := a.HandleMessage(msg); err != nil {
		t.Fatal(err)
	}
	first := a.State()
	if err := a.HandleMessage(msg); err != nil {
		t.Fatal(err)
	}
	if a.State() != first {
		t.Fatalf("second application changed state: %+v -> %+v", first, a.State())
	}
}

func TestHandleMessageRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"unknown token", `{"status":"BANANA"}`},
		{"not json", `status=safe`},
		{"missing status", `{"vehicle_id":"v-101"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			a := New(rec)
			a.state = DisplayState{Driver: models.DriverSafe, Vehicle: models.VehicleHardBraking}
			before := a.State()

			err := a.HandleMessage([]byte(tt.payload))
			if !errors.Is(err, models.ErrMalformedMessage) {
				t.Fatalf("err = %v, want ErrMalformedMessage", err)
			}
			if a.State() != before {
				t.Fatalf("state changed to %+v", a.State())
			}
			if len(rec.frames) != 0 {
				t.Fatal("rejected message triggered a render")
			}
		})
	}
}

func TestOptimisticThenEcho(t *testing.T) {
	rec := &recorder{}
	a := New(rec)

	if err := a.Optimistic(models.VehicleHardBraking); err != nil {
		t.Fatal(err)
	}
	if got := a.State(); got.Vehicle != models.VehicleHardBraking || !got.Tentative {
		t.Fatalf("after optimistic write: %+v", got)
	}
	if len(rec.frames) != 1 {
		t.Fatal("optimistic write should render immediately")
	}

	if err := a.HandleMessage([]byte(`{"status":"hard braking","heart_rate":72}`)); err != nil {
		t.Fatal(err)
	}
	if got := a.State(); got.Vehicle != models.VehicleHardBraking || got.Tentative {
		t.Fatalf("after echo: %+v", got)
	}
}
