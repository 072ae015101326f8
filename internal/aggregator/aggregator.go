// Package aggregator merges the driver and vehicle status streams that
// share one topic into the two-field state shown on the remote node.
package aggregator

import (
	"fmt"

	"saferide/go-backend/internal/models"
)

// DisplayState is what the node shows. Tentative is set by an optimistic
// local write and cleared when an authoritative vehicle status arrives.
type DisplayState struct {
	Driver    models.DriverStatus
	Vehicle   models.VehicleStatus
	Tentative bool
}

type Renderer interface {
	Render(DisplayState) error
}

// Aggregator owns the DisplayState. Only the node loop calls into it.
type Aggregator struct {
	state    DisplayState
	renderer Renderer
}

func New(renderer Renderer) *Aggregator {
	return &Aggregator{renderer: renderer}
}

func (a *Aggregator) State() DisplayState {
	return a.state
}

// Render draws the current state without changing it.
func (a *Aggregator) Render() error {
	if a.renderer == nil {
		return nil
	}
	return a.renderer.Render(a.state)
}

// HandleMessage applies one inbound payload. Malformed payloads and
// unrecognised status tokens leave the state untouched; the returned
// error wraps models.ErrMalformedMessage so the caller can log and move
// on. Any other error comes from the renderer.
func (a *Aggregator) HandleMessage(payload []byte) error {
	msg, err := models.DecodeTelemetry(payload)
	if err != nil {
		return err
	}
	return a.Apply(models.ParseStatus(msg.Status))
}

func (a *Aggregator) Apply(status models.Status) error {
	switch status.Kind {
	case models.StatusDriver:
		a.state.Driver = status.Driver
	case models.StatusVehicle:
		a.state.Vehicle = status.Vehicle
		a.state.Tentative = false
	default:
		return fmt.Errorf("%w: unrecognised status %q", models.ErrMalformedMessage, status.Token)
	}
	return a.Render()
}

// Optimistic writes a locally generated vehicle status and renders it
// before the echo from the transport comes back.
func (a *Aggregator) Optimistic(vehicle models.VehicleStatus) error {
	a.state.Vehicle = vehicle
	a.state.Tentative = true
	return a.Render()
}
