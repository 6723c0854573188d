package notify

import (
	"context"
	"sync"
)

// Message is one delivery recorded by FakeGateway.
type Message struct {
	Recipient  string
	Credential string
	Text       string
}

// FakeGateway is a test double that records messages.
type FakeGateway struct {
	mu       sync.Mutex
	messages []Message

	// SendError, if set, will be returned by Send() and the message not recorded.
	SendError error
}

// NewFakeGateway creates a FakeGateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{}
}

// Send records the message.
func (f *FakeGateway) Send(ctx context.Context, recipient, credential, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendError != nil {
		return f.SendError
	}
	f.messages = append(f.messages, Message{Recipient: recipient, Credential: credential, Text: text})
	return nil
}

// Messages returns a copy of all recorded messages.
func (f *FakeGateway) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Clear removes all recorded messages.
func (f *FakeGateway) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = nil
}
