package broker

import "sync/atomic"

// Mailbox buffers inbound messages until the owning loop polls for them.
// Deliver never blocks; a full mailbox drops the newest message.
type Mailbox struct {
	inbox   chan Message
	dropped atomic.Int64
}

func NewMailbox(depth int) *Mailbox {
	if depth < 1 {
		depth = 1
	}
	return &Mailbox{inbox: make(chan Message, depth)}
}

func (m *Mailbox) Deliver(msg Message) {
	select {
	case m.inbox <- msg:
	default:
		m.dropped.Add(1)
	}
}

// Poll hands every buffered message to handle on the caller's goroutine
// and returns without waiting for more.
func (m *Mailbox) Poll(handle Handler) int {
	n := 0
	for {
		select {
		case msg := <-m.inbox:
			handle(msg)
			n++
		default:
			return n
		}
	}
}

func (m *Mailbox) Dropped() int64 {
	return m.dropped.Load()
}
