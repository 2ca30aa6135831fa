// Package configprocessor binds configuration trees to method calls.
//
// A Processor walks a configuration section, selects for every entry the
// method of the target that accepts it and either invokes the methods at
// runtime or renders them as Go source. Processing events are published as
// CloudEvents to registered observers.
package configprocessor

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer defines the interface for objects that want to be notified of
// processing events. Events use the CloudEvents specification.
type Observer interface {
	// OnEvent is called when an event occurs that the observer is interested in.
	// Observers should handle events quickly to avoid blocking other observers.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject defines the interface for objects that can be observed.
type Subject interface {
	// RegisterObserver adds an observer to receive notifications.
	// If eventTypes is empty, the observer receives all events.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. It does not fail when the
	// observer was never registered.
	UnregisterObserver(observer Observer) error

	// NotifyObservers sends an event to all interested observers without
	// blocking the caller.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers returns information about currently registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo provides information about a registered observer.
type ObserverInfo struct {
	// ID is the unique identifier of the observer
	ID string `json:"id"`

	// EventTypes are the event types this observer is subscribed to.
	// Empty slice means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered
	RegisteredAt time.Time `json:"registeredAt"`
}

// EventType constants for processor events, in reverse domain notation.
const (
	// Resolution events
	EventTypeMethodResolved   = "com.configprocessor.method.resolved"
	EventTypeMethodNotFound   = "com.configprocessor.method.notfound"
	EventTypeDirectiveSkipped = "com.configprocessor.directive.skipped"

	// Pass events
	EventTypeCatalogBuilt     = "com.configprocessor.catalog.built"
	EventTypeProcessCompleted = "com.configprocessor.process.completed"
	EventTypeProcessFailed    = "com.configprocessor.process.failed"
	EventTypeEmitCompleted    = "com.configprocessor.emit.completed"

	// Configuration events
	EventTypeConfigReloaded = "com.configprocessor.config.reloaded"
)

// EventSource is the CloudEvents source of processor events.
const EventSource = "configprocessor"

// FunctionalObserver provides a simple way to create observers using functions.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided function
// to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
