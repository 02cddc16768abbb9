// Package telemetry provides observability instrumentation for dbxdeploy.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing behind one
// handle the CLI wires at startup.
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// The DeployObserver bridges the orchestrator's run/stage lifecycle into
// spans, counters, and events without the orchestrator importing any
// telemetry backend directly.
package telemetry
