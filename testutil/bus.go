package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// MockBus is an in-memory message bus for testing. It satisfies
// component.Bus: handlers are invoked synchronously on the publishing
// goroutine. Thread-safe for concurrent use.
type MockBus struct {
	mu            sync.RWMutex
	messages      map[string][][]byte
	subscriptions map[string][]func(context.Context, []byte)
	failPublishes int
	failBySubject map[string]int
	closed        bool
}

// NewMockBus creates a new mock bus.
func NewMockBus() *MockBus {
	return &MockBus{
		messages:      make(map[string][][]byte),
		subscriptions: make(map[string][]func(context.Context, []byte)),
		failBySubject: make(map[string]int),
	}
}

// Publish records the message and delivers it to subscribed handlers.
func (b *MockBus) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus is closed")
	}
	if b.failPublishes > 0 {
		b.failPublishes--
		b.mu.Unlock()
		return fmt.Errorf("injected publish failure")
	}
	if n := b.failBySubject[subject]; n > 0 {
		b.failBySubject[subject] = n - 1
		b.mu.Unlock()
		return fmt.Errorf("injected publish failure on %s", subject)
	}

	b.messages[subject] = append(b.messages[subject], data)

	// Copy handlers to avoid holding the lock during callbacks.
	var handlers []func(context.Context, []byte)
	if h, ok := b.subscriptions[subject]; ok {
		handlers = make([]func(context.Context, []byte), len(h))
		copy(handlers, h)
	}
	b.mu.Unlock()

	for _, handler := range handlers {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		handler(msgCtx, data)
		cancel()
	}

	return nil
}

// Subscribe registers a handler for a subject.
func (b *MockBus) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("bus is closed")
	}

	b.subscriptions[subject] = append(b.subscriptions[subject], handler)
	return nil
}

// FailNextPublishes makes the next n Publish calls return an error, for
// exercising retry paths.
func (b *MockBus) FailNextPublishes(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPublishes = n
}

// FailPublishes makes the next n Publish calls on one subject return an
// error, leaving the test's own publishes on other subjects untouched.
func (b *MockBus) FailPublishes(subject string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failBySubject[subject] = n
}

// Messages returns a copy of all messages published to a subject.
func (b *MockBus) Messages(subject string) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	msgs := b.messages[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result
}

// MessageCount returns the number of messages published to a subject.
func (b *MockBus) MessageCount(subject string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages[subject])
}

// Clear discards recorded messages on a subject.
func (b *MockBus) Clear(subject string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.messages, subject)
}

// ClearAll discards all recorded messages.
func (b *MockBus) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = make(map[string][][]byte)
}

// Close marks the bus closed; further operations fail.
func (b *MockBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// WaitForMessage waits until at least one message is published on a subject
// and returns the latest one. Fails the test on timeout.
func WaitForMessage(t *testing.T, bus *MockBus, subject string, timeout time.Duration) []byte {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("timeout waiting for message on subject %s", subject)
			return nil
		case <-ticker.C:
			messages := bus.Messages(subject)
			if len(messages) > 0 {
				return messages[len(messages)-1]
			}
		}
	}
}

// WaitForMessageCount waits until at least count messages were published on a
// subject. Fails the test on timeout.
func WaitForMessageCount(t *testing.T, bus *MockBus, subject string, count int, timeout time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			got := bus.MessageCount(subject)
			t.Fatalf("timeout waiting for %d messages on subject %s (got %d)", count, subject, got)
			return
		case <-ticker.C:
			if bus.MessageCount(subject) >= count {
				return
			}
		}
	}
}

// AssertNoMessages checks that nothing was published on a subject.
func AssertNoMessages(t *testing.T, bus *MockBus, subject string) {
	t.Helper()

	if n := bus.MessageCount(subject); n > 0 {
		t.Fatalf("expected no messages on subject %s, got %d", subject, n)
	}
}
