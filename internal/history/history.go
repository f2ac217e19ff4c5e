// Package history holds conversation state: ordered role-tagged messages per
// session, kept in memory for the lifetime of the process.
// An optional sqlite journal records every appended message but is never
// read back, so conversations do not survive a restart.
package history

import "sync"

// History is an append-only ordered list of messages for one conversation.
// Content is not validated and the list is never pruned.
type History struct {
	mu       sync.RWMutex
	messages []Message
	onAppend func(Message)
}

// New returns a History that starts with a copy of seed.
func New(seed ...Message) *History {
	h := &History{messages: make([]Message, 0, len(seed)+2)}
	h.messages = append(h.messages, seed...)
	return h
}

// Append adds m to the end of the history.
func (h *History) Append(m Message) {
	h.mu.Lock()
	h.messages = append(h.messages, m)
	hook := h.onAppend
	h.mu.Unlock()

	if hook != nil {
		hook(m)
	}
}

// Snapshot returns a copy of the messages in conversation order.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Last returns the most recent message, if any.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.messages) == 0 {
		return Message{}, false
	}
	return h.messages[len(h.messages)-1], true
}
