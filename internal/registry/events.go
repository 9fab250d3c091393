package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/interfaces"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/logger"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/monitoring"
	"github.com/Preeti0411Gautam/Electronic-Medical-Records/pkg/types"
)

// ObserverFunc consumes emitted registry events.
type ObserverFunc func(event *types.RegistryEvent)

// EventPublisher assigns identities to emitted notification records, retains
// them in emission order, and fans them out synchronously to subscribed
// observers. Mutating operations emit while holding the registry write lock,
// so observers see events in the same order state changes became visible.
type EventPublisher struct {
	logger    *logger.Logger
	mu        sync.Mutex
	history   []*types.RegistryEvent
	observers []ObserverFunc
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(log *logger.Logger) *EventPublisher {
	return &EventPublisher{
		logger: log,
	}
}

var _ interfaces.EventSink = (*EventPublisher)(nil)

// Subscribe registers an observer for all subsequent events.
func (p *EventPublisher) Subscribe(observer ObserverFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Emit stamps the event with an ID and timestamp, records it, and notifies
// all observers.
func (p *EventPublisher) Emit(event *types.RegistryEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	event.ID = uuid.New().String()
	event.Timestamp = time.Now()

	p.history = append(p.history, event)
	monitoring.RecordEvent(string(event.Type))
	p.logger.RegistryEvent(string(event.Type), event.ID, nil)

	for _, observer := range p.observers {
		observer(event)
	}
}

// Events returns all emitted events in emission order.
func (p *EventPublisher) Events() []*types.RegistryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := make([]*types.RegistryEvent, len(p.history))
	copy(events, p.history)
	return events
}
