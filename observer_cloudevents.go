package configprocessor

import (
	"errors"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience
type CloudEvent = cloudevents.Event

// NewCloudEvent creates a new CloudEvent with the specified parameters. An
// empty source defaults to EventSource.
func NewCloudEvent(eventType, source string, data any, metadata map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	if source == "" {
		source = EventSource
	}

	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}

	for key, value := range metadata {
		event.SetExtension(key, value)
	}

	return event
}

// newProcessorEvent builds a processor event. The configuration path the
// event concerns, taken from the "path" or "section" data entry, becomes the
// event subject so observers can filter without decoding the data.
func newProcessorEvent(eventType string, data map[string]any) cloudevents.Event {
	event := NewCloudEvent(eventType, EventSource, data, nil)
	for _, key := range []string{"path", "section"} {
		if subject, ok := data[key].(string); ok && subject != "" {
			event.SetSubject(subject)
			break
		}
	}
	return event
}

// generateEventID generates a time-ordered identifier using UUIDv7.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails for any reason
		id = uuid.New()
	}
	return id.String()
}

// ValidateCloudEvent validates that a CloudEvent conforms to the specification.
func ValidateCloudEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}
	return nil
}

// HandleEventEmissionError reports whether err from an event emission was
// dealt with. ErrNoSubjectForEventEmission is ignored; other errors are
// logged at debug level when a logger is available.
func HandleEventEmissionError(err error, logger Logger, eventType string) bool {
	if errors.Is(err, ErrNoSubjectForEventEmission) {
		return true
	}
	if logger != nil {
		logger.Debug("Failed to emit event", "eventType", eventType, "error", err)
		return true
	}
	return false
}
