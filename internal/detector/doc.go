// Package detector holds the stateful part of driver monitoring: the two
// hysteresis counters, the priority-ordered alert classifier with its
// sneeze/talk filter, and the Session that owns the counters across
// video cycles.
//
// Counters rise by one on every cycle their condition holds and fall by
// one (never below zero) otherwise. An alert therefore builds up over
// consecutive frames and clears only after as many normal frames.
package detector
