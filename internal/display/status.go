package display

import (
	"strings"

	"saferide/go-backend/internal/aggregator"
)

const header = "SafeRide Monitor"

// StatusRenderer lays out the dual status screen:
//
//	row 0  SafeRide Monitor
//	row 1  ----------------
//	row 2  DRIVER:
//	row 3  <driver status>
//	row 5  VEHICLE:
//	row 6  <vehicle status>
type StatusRenderer struct {
	surface Surface
}

func NewStatusRenderer(surface Surface) *StatusRenderer {
	return &StatusRenderer{surface: surface}
}

func (r *StatusRenderer) Render(state aggregator.DisplayState) error {
	r.surface.Clear()
	r.surface.DrawText(0, 0, header)
	r.surface.DrawText(0, 1, strings.Repeat("-", Columns))
	r.surface.DrawText(0, 2, "DRIVER:")
	r.surface.DrawText(0, 3, truncate(state.Driver.Label()))
	r.surface.DrawText(0, 5, "VEHICLE:")
	r.surface.DrawText(0, 6, truncate(state.Vehicle.Label()))
	return r.surface.Flush()
}

func (r *StatusRenderer) Connecting(target string) error {
	r.surface.Clear()
	r.surface.DrawText(0, 0, "Connecting...")
	r.surface.DrawText(0, 2, truncate(target))
	return r.surface.Flush()
}

// WiFiFailed is shown when the node cannot reach the network at all.
func (r *StatusRenderer) WiFiFailed() error {
	r.surface.Clear()
	r.surface.DrawText(0, 3, "WiFi Failed")
	return r.surface.Flush()
}

// Fault shows the first characters of a runtime error before restart.
func (r *StatusRenderer) Fault(err error) error {
	r.surface.Clear()
	r.surface.DrawText(0, 0, "Error:")
	r.surface.DrawText(0, 2, truncate(err.Error()))
	return r.surface.Flush()
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) > Columns {
		return string(runes[:Columns])
	}
	return s
}
