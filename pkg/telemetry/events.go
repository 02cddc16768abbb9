package telemetry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the dbxdeploy system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// RunID is the associated deployment run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// AppName is the associated application, if applicable.
	AppName string `json:"app_name,omitempty"`

	// Stage is the associated workflow stage, if applicable.
	Stage string `json:"stage,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data. Secret values must
	// never be placed here.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeDeployStarted   = "deploy.started"
	EventTypeDeployCompleted = "deploy.completed"
	EventTypeDeployFailed    = "deploy.failed"
	EventTypeStageStarted    = "stage.started"
	EventTypeStageCompleted  = "stage.completed"
	EventTypeStageFailed     = "stage.failed"
	EventTypePolicyViolation = "policy.violation"
	EventTypeSecretPushed    = "secret.pushed"
	EventTypeAppDeleted      = "app.deleted"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventPublisher fans events out to registered subscribers. Publishing
// never blocks the deployment workflow: when the buffer is full the event
// is dropped.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []EventSubscriber
	mu          sync.RWMutex
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{config: cfg}
	if !cfg.Enabled {
		return ep, nil
	}

	ep.buffer = make(chan Event, cfg.BufferSize)
	ep.done = make(chan struct{})
	ep.wg.Add(1)
	go ep.dispatch()
	return ep, nil
}

// Subscribe registers a subscriber for all events.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = append(ep.subscribers, subscriber)
}

// Publish publishes an event. Returns false if the event was dropped.
func (ep *EventPublisher) Publish(event Event) bool {
	if !ep.config.Enabled {
		return false
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case ep.buffer <- event:
		return true
	default:
		return false
	}
}

// PublishDeployStarted publishes a deploy-started event.
func (ep *EventPublisher) PublishDeployStarted(runID, appName, mode string) {
	ep.Publish(Event{
		Type:    EventTypeDeployStarted,
		RunID:   runID,
		AppName: appName,
		Level:   EventLevelInfo,
		Message: "deployment started",
		Data:    map[string]interface{}{"mode": mode},
	})
}

// PublishDeployCompleted publishes a deploy-completed event.
func (ep *EventPublisher) PublishDeployCompleted(runID, appName string, duration time.Duration) {
	ep.Publish(Event{
		Type:    EventTypeDeployCompleted,
		RunID:   runID,
		AppName: appName,
		Level:   EventLevelInfo,
		Message: "deployment completed",
		Data:    map[string]interface{}{"duration_seconds": duration.Seconds()},
	})
}

// PublishDeployFailed publishes a deploy-failed event.
func (ep *EventPublisher) PublishDeployFailed(runID, appName, reason string) {
	ep.Publish(Event{
		Type:    EventTypeDeployFailed,
		RunID:   runID,
		AppName: appName,
		Level:   EventLevelError,
		Message: reason,
	})
}

// PublishStageEvent publishes a stage lifecycle event.
func (ep *EventPublisher) PublishStageEvent(eventType, runID, stage, message string) {
	level := EventLevelInfo
	if eventType == EventTypeStageFailed {
		level = EventLevelError
	}
	ep.Publish(Event{
		Type:    eventType,
		RunID:   runID,
		Stage:   stage,
		Level:   level,
		Message: message,
	})
}

// dispatch delivers buffered events to subscribers.
func (ep *EventPublisher) dispatch() {
	defer ep.wg.Done()
	for {
		select {
		case event := <-ep.buffer:
			ep.deliver(event)
		case <-ep.done:
			// Drain what is left before exiting.
			for {
				select {
				case event := <-ep.buffer:
					ep.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliver(event Event) {
	ep.mu.RLock()
	subscribers := ep.subscribers
	ep.mu.RUnlock()

	for _, subscriber := range subscribers {
		subscriber(event)
	}
}

// Shutdown stops the dispatcher after draining buffered events.
func (ep *EventPublisher) Shutdown() {
	if !ep.config.Enabled {
		return
	}
	close(ep.done)
	ep.wg.Wait()
}
