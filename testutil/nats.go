package testutil

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/c360/ringpipe/errors"
)

// MockNATSClient is an in-memory publisher with the same Publish and
// Subscribe signatures as natsclient.Client.
type MockNATSClient struct {
	mu            sync.RWMutex
	messages      map[string][][]byte
	subscriptions map[string][]func(context.Context, []byte)
	failures      int
	closed        bool
}

// NewMockNATSClient creates a new mock client
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{
		messages:      make(map[string][][]byte),
		subscriptions: make(map[string][]func(context.Context, []byte)),
	}
}

// FailNext makes the next n publishes fail with a transient error
func (c *MockNATSClient) FailNext(n int) {
	c.mu.Lock()
	c.failures = n
	c.mu.Unlock()
}

// Publish records data and delivers it to subscribers of subject.
func (c *MockNATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "MockNATSClient", "Publish", "publish")
	}
	if c.failures > 0 {
		c.failures--
		c.mu.Unlock()
		return errors.WrapTransient(errors.ErrConnectionLost, "MockNATSClient", "Publish", "publish")
	}

	msg := append([]byte(nil), data...)
	c.messages[subject] = append(c.messages[subject], msg)
	handlers := slices.Clone(c.subscriptions[subject])
	c.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, msg)
	}
	return nil
}

// Subscribe registers handler for subject
func (c *MockNATSClient) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "MockNATSClient", "Subscribe", "subscribe")
	}
	c.subscriptions[subject] = append(c.subscriptions[subject], handler)
	return nil
}

// GetMessages returns a copy of everything published on subject
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([][]byte, len(c.messages[subject]))
	copy(out, c.messages[subject])
	return out
}

// GetMessageCount returns the number of messages published on subject
func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// Close makes later calls fail
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// WaitForMessageCount fails t unless count messages arrive on subject within timeout.
func WaitForMessageCount(t testing.TB, client *MockNATSClient, subject string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for client.GetMessageCount(subject) < count {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %d messages on subject %s (got %d)",
				count, subject, client.GetMessageCount(subject))
		}
		time.Sleep(5 * time.Millisecond)
	}
}
