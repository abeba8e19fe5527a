package lint

import "sync"

type messageKind int

const (
	msgCheckRequested messageKind = iota
	msgProcessOutput
	msgProcessTerminated
)

type message struct {
	kind     messageKind
	path     string
	id       string
	chunk    []byte
	exitCode int
}

// mailbox is an unbounded FIFO of messages for the Run loop.
// Producers never block.
type mailbox struct {
	mu     sync.Mutex
	items  []message
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(msg message) {
	m.mu.Lock()
	m.items = append(m.items, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// drain removes and returns every pending message in arrival order.
func (m *mailbox) drain() []message {
	m.mu.Lock()
	items := m.items
	m.items = nil
	m.mu.Unlock()
	return items
}
