package vehicle

import "sync/atomic"

// Input is one digital line on the node. Asserted reports the debounced
// level at the moment of the call.
type Input interface {
	Asserted() bool
}

// Inputs are checked in field order; the first asserted button wins.
type Inputs struct {
	Safe        Input
	HarshTurn   Input
	HardBraking Input
	HeartWire   Input
}

// Latch is a momentary button. Press asserts it until the next read.
type Latch struct {
	pressed atomic.Bool
}

func (l *Latch) Press() {
	l.pressed.Store(true)
}

func (l *Latch) Asserted() bool {
	return l.pressed.Swap(false)
}

// Toggle is a level input that stays where it was last set.
type Toggle struct {
	on atomic.Bool
}

func (t *Toggle) Set(on bool) {
	t.on.Store(on)
}

func (t *Toggle) Flip() bool {
	for {
		old := t.on.Load()
		if t.on.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (t *Toggle) Asserted() bool {
	return t.on.Load()
}

func asserted(in Input) bool {
	return in != nil && in.Asserted()
}
