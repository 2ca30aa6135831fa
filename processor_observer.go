package configprocessor

import (
	"context"
	"sort"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// observerRegistration holds information about a registered observer
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool // set of event types this observer is interested in
	registeredAt time.Time
}

// RegisterObserver adds an observer to receive processor events.
// If eventTypes is empty, the observer receives all events. Registering an
// ID again replaces the earlier registration.
func (p *Processor) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}
	if observer.ObserverID() == "" {
		return ErrObserverIDEmpty
	}

	p.observerMutex.Lock()
	defer p.observerMutex.Unlock()

	eventTypeMap := make(map[string]bool)
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}

	p.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}

	p.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. It is idempotent.
func (p *Processor) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}

	p.observerMutex.Lock()
	defer p.observerMutex.Unlock()

	if _, exists := p.observers[observer.ObserverID()]; exists {
		delete(p.observers, observer.ObserverID())
		p.logger.Debug("Observer unregistered", "observerID", observer.ObserverID())
	}
	return nil
}

// NotifyObservers validates event and delivers it to every interested
// observer on its own goroutine, or inline when ctx was marked with
// WithSynchronousNotification. Observer errors and panics are logged.
func (p *Processor) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	p.observerMutex.RLock()
	defer p.observerMutex.RUnlock()

	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}

	if err := ValidateCloudEvent(event); err != nil {
		p.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	for _, registration := range p.observers {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}

		deliver := func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("Observer panicked", "observerID", registration.observer.ObserverID(), "event", event.Type(), "panic", r)
				}
			}()

			if err := registration.observer.OnEvent(ctx, event); err != nil {
				p.logger.Error("Observer error", "observerID", registration.observer.ObserverID(), "event", event.Type(), "error", err)
			}
		}
		if IsSynchronousNotification(ctx) {
			deliver()
			continue
		}
		go deliver()
	}

	return nil
}

// GetObservers returns information about currently registered observers,
// ordered by ID.
func (p *Processor) GetObservers() []ObserverInfo {
	p.observerMutex.RLock()
	defer p.observerMutex.RUnlock()

	info := make([]ObserverInfo, 0, len(p.observers))
	for _, registration := range p.observers {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		sort.Strings(eventTypes)

		info = append(info, ObserverInfo{
			ID:           registration.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	sort.Slice(info, func(i, j int) bool { return info[i].ID < info[j].ID })

	return info
}

// hasObservers reports whether anyone listens, so event payloads are only
// built when needed.
func (p *Processor) hasObservers() bool {
	p.observerMutex.RLock()
	defer p.observerMutex.RUnlock()
	return len(p.observers) > 0
}

// emitEvent publishes an event without blocking the pass unless ctx asks for
// synchronous delivery.
func (p *Processor) emitEvent(ctx context.Context, eventType string, data map[string]any) {
	if !p.hasObservers() {
		return
	}
	event := newProcessorEvent(eventType, data)

	if IsSynchronousNotification(ctx) {
		if err := p.NotifyObservers(ctx, event); err != nil {
			HandleEventEmissionError(err, p.logger, eventType)
		}
		return
	}
	go func() {
		if err := p.NotifyObservers(ctx, event); err != nil {
			HandleEventEmissionError(err, p.logger, eventType)
		}
	}()
}
