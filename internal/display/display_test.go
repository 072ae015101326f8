package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"saferide/go-backend/internal/aggregator"
	"saferide/go-backend/internal/models"
)

func TestGridClips(t *testing.T) {
	g := NewGrid(4, 2)
	g.DrawText(2, 0, "abcdef")
	g.DrawText(-1, 1, "xyz")
	g.DrawText(0, 5, "ignored")

	if got := g.String(); got != "  ab\nyz" {
		t.Fatalf("grid = %q", got)
	}
}

func TestRenderInitialScreen(t *testing.T) {
	g := NewGrid(Columns, Rows)
	r := NewStatusRenderer(g)

	if err := r.Render(aggregator.DisplayState{}); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"SafeRide Monitor",
		"----------------",
		"DRIVER:",
		"UNKNOWN",
		"",
		"VEHICLE:",
		"UNKNOWN",
	}, "\n")
	if got := g.String(); got != want {
		t.Fatalf("screen =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderVehicleLabels(t *testing.T) {
	g := NewGrid(Columns, Rows)
	r := NewStatusRenderer(g)

	state := aggregator.DisplayState{Driver: models.DriverFatigue, Vehicle: models.VehicleSafe}
	if err := r.Render(state); err != nil {
		t.Fatal(err)
	}
	lines := g.Lines()
	if strings.TrimSpace(lines[3]) != "FATIGUE" || strings.TrimSpace(lines[6]) != "SAFE" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestFaultTruncates(t *testing.T) {
	g := NewGrid(Columns, Rows)
	r := NewStatusRenderer(g)

	if err := r.Fault(errors.New("connection lost: EOF from broker")); err != nil {
		t.Fatal(err)
	}
	lines := g.Lines()
	if strings.TrimSpace(lines[0]) != "Error:" || lines[2] != "connection lost:" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestWiFiFailed(t *testing.T) {
	g := NewGrid(Columns, Rows)
	if err := NewStatusRenderer(g).WiFiFailed(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(g.String(), "WiFi Failed") {
		t.Fatalf("screen = %q", g.String())
	}
}

func TestTerminalFlush(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out, false)
	if err := NewStatusRenderer(term).Render(aggregator.DisplayState{Driver: models.DriverDrowsy}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"SafeRide Monitor", "DRIVER:", "DROWSY", "VEHICLE:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), clearScreen) {
		t.Error("clear sequence written with clear disabled")
	}
}

func TestKeyboardInputs(t *testing.T) {
	kb := NewKeyboard()
	inputs := kb.Inputs()

	err := kb.Run(strings.NewReader("2h"))
	if err != nil {
		t.Fatalf("Run = %v", err)
	}
	if inputs.Safe.Asserted() || !inputs.HarshTurn.Asserted() || inputs.HardBraking.Asserted() {
		t.Fatal("only the harsh turn button should be pressed")
	}
	if inputs.HarshTurn.Asserted() {
		t.Fatal("button press should be consumed by the first read")
	}
	if !inputs.HeartWire.Asserted() || !inputs.HeartWire.Asserted() {
		t.Fatal("heart wire should stay connected")
	}
}

func TestKeyboardQuit(t *testing.T) {
	kb := NewKeyboard()
	if err := kb.Run(strings.NewReader("1q3")); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Run = %v, want ErrInterrupted", err)
	}
	if kb.Inputs().HardBraking.Asserted() {
		t.Fatal("keys after quit should not be applied")
	}
}
