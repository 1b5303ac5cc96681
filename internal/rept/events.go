package rept

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// StatsEvent is emitted every sample interval so presentation
// clients can render the lattice and plot the statistics without
// polling the engine.
type StatsEvent struct {
	SimulationID SimulationID `json:"simulation_id"`
	Timestamp    int64        `json:"timestamp"`
	Stats        Stats        `json:"stats"`
	Chains       []Chain      `json:"chains,omitempty"`
}

// JSON returns the event as JSON bytes.
func (ev StatsEvent) JSON() ([]byte, error) {
	return json.Marshal(ev)
}

// Notifier is the interface that all event channels must implement.
type Notifier interface {
	// ID returns a unique identifier for this notifier
	ID() string

	// Type returns the type of notifier (e.g., "webhook", "websocket")
	Type() string

	// Notify delivers a stats event. Returns an error if delivery fails.
	// The context can be used for cancellation and timeout.
	Notify(ctx context.Context, event StatsEvent) error

	// Close closes the notifier and releases any resources
	Close() error
}

// NotificationManager manages all notifiers and routes events to them.
// Delivery is asynchronous and best effort: a full queue drops events
// rather than stalling the simulation loop.
type NotificationManager struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	jobs      chan StatsEvent
	closed    bool
	wg        sync.WaitGroup
	logger    Logger
}

// NewNotificationManager creates a new notification manager.
func NewNotificationManager() *NotificationManager {
	return NewNotificationManagerWithLogger(NewNoOpLogger())
}

// NewNotificationManagerWithLogger is NewNotificationManager with an
// injectable logger.
func NewNotificationManagerWithLogger(logger Logger) *NotificationManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	mgr := &NotificationManager{
		notifiers: make(map[string]Notifier),
		jobs:      make(chan StatsEvent, 1024),
		logger:    logger,
	}
	mgr.startWorkers(1)
	return mgr
}

// RegisterNotifier registers a notifier with the manager.
func (nm *NotificationManager) RegisterNotifier(notifier Notifier) error {
	if notifier == nil {
		return fmt.Errorf("notifier cannot be nil")
	}

	id := notifier.ID()
	if id == "" {
		return fmt.Errorf("notifier ID cannot be empty")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()

	if _, exists := nm.notifiers[id]; exists {
		return fmt.Errorf("notifier with ID %s already exists", id)
	}

	nm.notifiers[id] = notifier
	return nil
}

// UnregisterNotifier removes a notifier from the manager.
func (nm *NotificationManager) UnregisterNotifier(id string) error {
	nm.mu.Lock()
	notifier, exists := nm.notifiers[id]
	nm.mu.Unlock()

	if !exists {
		return fmt.Errorf("notifier with ID %s not found", id)
	}

	if err := notifier.Close(); err != nil {
		return fmt.Errorf("error closing notifier %s: %w", id, err)
	}

	nm.mu.Lock()
	delete(nm.notifiers, id)
	nm.mu.Unlock()

	return nil
}

// GetNotifier retrieves a notifier by ID.
func (nm *NotificationManager) GetNotifier(id string) (Notifier, bool) {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	notifier, exists := nm.notifiers[id]
	return notifier, exists
}

// ListNotifiers returns the registered notifier IDs.
func (nm *NotificationManager) ListNotifiers() []string {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	return ids
}

// Enqueue submits an event for asynchronous delivery to every
// registered notifier. Non-blocking: events are dropped with a log
// line when the queue is full.
func (nm *NotificationManager) Enqueue(event StatsEvent) {
	nm.mu.RLock()
	closed := nm.closed
	nm.mu.RUnlock()

	if closed {
		return
	}

	select {
	case nm.jobs <- event:
	default:
		nm.logger.Warnf("event queue full, dropping stats event: simulation=%s step=%d", event.SimulationID, event.Stats.Steps)
	}
}

// startWorkers starts n worker goroutines to process events.
func (nm *NotificationManager) startWorkers(n int) {
	for i := 0; i < n; i++ {
		nm.wg.Add(1)
		go nm.worker()
	}
}

func (nm *NotificationManager) worker() {
	defer nm.wg.Done()
	for event := range nm.jobs {
		nm.dispatch(event)
	}
}

// dispatch delivers one event to all registered notifiers with
// retry/backoff per notifier.
func (nm *NotificationManager) dispatch(event StatsEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	nm.mu.RLock()
	ids := make([]string, 0, len(nm.notifiers))
	for id := range nm.notifiers {
		ids = append(ids, id)
	}
	nm.mu.RUnlock()

	for _, id := range ids {
		nm.notifyWithRetry(ctx, id, event)
	}
}

// notifyWithRetry attempts delivery with exponential backoff.
func (nm *NotificationManager) notifyWithRetry(ctx context.Context, notifierID string, event StatsEvent) {
	nm.mu.RLock()
	notifier, ok := nm.notifiers[notifierID]
	nm.mu.RUnlock()

	if !ok {
		return
	}

	const maxRetries = 3
	backoff := 100 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := notifier.Notify(ctx, event)
		if err == nil {
			return
		}

		nm.logger.Warnf("event delivery failed: notifier=%s attempt=%d error=%v", notifierID, attempt+1, err)

		if attempt == maxRetries {
			nm.logger.Errorf("event delivery failed after %d attempts: notifier=%s", maxRetries+1, notifierID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// Close shuts down the workers and closes all registered notifiers.
func (nm *NotificationManager) Close() error {
	nm.mu.Lock()
	if nm.closed {
		nm.mu.Unlock()
		return nil
	}
	nm.closed = true
	close(nm.jobs)
	nm.mu.Unlock()

	nm.wg.Wait()

	nm.mu.Lock()
	var errs []error
	for id, notifier := range nm.notifiers {
		if err := notifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing notifier %s: %w", id, err))
		}
	}
	nm.notifiers = make(map[string]Notifier)
	nm.mu.Unlock()

	if len(errs) > 0 {
		return fmt.Errorf("errors closing notifiers: %v", errs)
	}
	return nil
}
