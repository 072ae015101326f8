package display

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"saferide/go-backend/internal/vehicle"
)

// ErrInterrupted is returned by Keyboard.Run when the operator asks to
// quit. Raw mode swallows SIGINT, so Ctrl-C arrives as a key.
var ErrInterrupted = errors.New("interrupted from keyboard")

const ctrlC = 0x03

// Keyboard stands in for the node's digital inputs: keys 1, 2 and 3 press
// the safe, harsh turn and hard braking buttons; h toggles the heart wire.
type Keyboard struct {
	safe        vehicle.Latch
	harshTurn   vehicle.Latch
	hardBraking vehicle.Latch
	heartWire   vehicle.Toggle
}

func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

func (k *Keyboard) Inputs() vehicle.Inputs {
	return vehicle.Inputs{
		Safe:        &k.safe,
		HarshTurn:   &k.harshTurn,
		HardBraking: &k.hardBraking,
		HeartWire:   &k.heartWire,
	}
}

// Handle applies one key and reports whether it was a quit request.
func (k *Keyboard) Handle(key byte) bool {
	switch key {
	case '1':
		k.safe.Press()
	case '2':
		k.harshTurn.Press()
	case '3':
		k.hardBraking.Press()
	case 'h', 'H':
		k.heartWire.Flip()
	case 'q', 'Q', ctrlC:
		return true
	}
	return false
}

// Run reads keys until in is exhausted or a quit key arrives.
func (k *Keyboard) Run(in io.Reader) error {
	buf := make([]byte, 16)
	for {
		n, err := in.Read(buf)
		for _, key := range buf[:n] {
			if k.Handle(key) {
				return ErrInterrupted
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read keyboard: %w", err)
		}
	}
}

// RawMode puts f into raw mode when it is a terminal and returns the
// function that restores it. For anything else restore is a no-op.
func RawMode(f *os.File) (restore func(), err error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("set terminal raw mode: %w", err)
	}
	return func() { term.Restore(fd, oldState) }, nil
}
