package telemetry

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad log level")
	}
}

func TestValidateRejectsBadSamplingRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracing.Enabled = true
	cfg.Tracing.SamplingRate = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for sampling rate above 1")
	}
}

func TestEventPublisherDeliversToSubscribers(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 8})
	if err != nil {
		t.Fatal(err)
	}

	received := make(chan Event, 1)
	ep.Subscribe(func(event Event) { received <- event })

	if !ep.Publish(Event{Type: EventTypeDeployStarted, Message: "go"}) {
		t.Fatal("expected publish to be accepted")
	}

	select {
	case event := <-received:
		if event.Type != EventTypeDeployStarted {
			t.Errorf("unexpected event type %q", event.Type)
		}
		if event.ID == "" || event.Timestamp.IsZero() {
			t.Error("expected ID and timestamp to be set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	ep.Shutdown()
}

func TestEventPublisherDisabledDropsEvents(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if ep.Publish(Event{Type: EventTypeDeployStarted}) {
		t.Fatal("disabled publisher must drop events")
	}
}

func TestNoopMetricsAreSafe(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordDeployStarted("deploy")
	m.RecordDeployCompleted("succeeded", time.Second)
	m.RecordStage("build", "ok", time.Second)
	m.RecordCommand("databricks", time.Second, 1)
	m.RecordPollIteration()
	m.RecordError("command_failure")
}

func TestLoggerComponentField(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatal(err)
	}
	child := logger.NewComponentLogger("pipeline")
	if child == nil {
		t.Fatal("expected child logger")
	}
}
