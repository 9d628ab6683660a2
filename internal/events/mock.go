package events

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*ResponseEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*ResponseEvent, 0),
	}
}

// PublishResponse records the event and returns any configured error.
func (m *MockPublisher) PublishResponse(_ context.Context, event *ResponseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a copy of all published events.
func (m *MockPublisher) Events() []*ResponseEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ResponseEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// SetPublishError configures the mock to fail on PublishResponse.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
