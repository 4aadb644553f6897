package ctmsg

import (
	"sync"

	ctlib "github.com/ase-go/ctlib-bindings-go"
)

// Recorder keeps every message it is handed. Use HandleMessage as a
// MessageHandler.
type Recorder struct {
	mu   sync.Mutex
	msgs []ctlib.Message
}

// HandleMessage records msg.
func (r *Recorder) HandleMessage(msg ctlib.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

// Messages returns the recorded messages in arrival order.
func (r *Recorder) Messages() []ctlib.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ctlib.Message(nil), r.msgs...)
}

// Text returns the text of the recorded messages.
func (r *Recorder) Text() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	text := make([]string, 0, len(r.msgs))
	for _, msg := range r.msgs {
		text = append(text, msg.Content())
	}
	return text
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// Reset forgets all recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}
