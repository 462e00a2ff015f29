package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu             sync.RWMutex
	accountEvents  []*AccountEvent
	transferEvents []*TransferEvent
	publishError   error
	closed         bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		accountEvents:  make([]*AccountEvent, 0),
		transferEvents: make([]*TransferEvent, 0),
	}
}

// PublishAccountUpdate records the event and returns any configured error.
func (m *MockPublisher) PublishAccountUpdate(ctx context.Context, event *AccountEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.accountEvents = append(m.accountEvents, event)
	return nil
}

// PublishTransfer records the event and returns any configured error.
func (m *MockPublisher) PublishTransfer(ctx context.Context, event *TransferEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.transferEvents = append(m.transferEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetAccountEvents returns all published account events (for testing).
func (m *MockPublisher) GetAccountEvents() []*AccountEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	events := make([]*AccountEvent, len(m.accountEvents))
	copy(events, m.accountEvents)
	return events
}

// GetTransferEvents returns all published transfer events (for testing).
func (m *MockPublisher) GetTransferEvents() []*TransferEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TransferEvent, len(m.transferEvents))
	copy(events, m.transferEvents)
	return events
}

// GetTransferEventsForWallet returns transfer events for a specific wallet.
func (m *MockPublisher) GetTransferEventsForWallet(address string) []*TransferEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*TransferEvent, 0)
	for _, event := range m.transferEvents {
		if event.WalletAddress == address {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountEvents = make([]*AccountEvent, 0)
	m.transferEvents = make([]*TransferEvent, 0)
	m.publishError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
