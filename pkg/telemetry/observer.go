package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dbxdeploy/dbxdeploy/pkg/deploy"
)

// DeployObserver feeds run and stage lifecycle notifications into the
// tracer, metrics, and event publisher. It implements deploy.Observer.
type DeployObserver struct {
	tel *Telemetry
}

// NewDeployObserver creates an observer over a telemetry handle.
func NewDeployObserver(tel *Telemetry) *DeployObserver {
	return &DeployObserver{tel: tel}
}

type runSpanKey struct{}
type stageSpanKey struct{}

// RunStarted opens the root deployment span and records the start.
func (o *DeployObserver) RunStarted(ctx context.Context, runID, mode string, target deploy.Target) context.Context {
	ctx, span := o.tel.Tracer.StartDeploySpan(ctx, runID, target.AppName, mode)
	o.tel.Metrics.RecordDeployStarted(mode)
	o.tel.Events.PublishDeployStarted(runID, target.AppName, mode)
	return context.WithValue(ctx, runSpanKey{}, span)
}

// StageStarted opens a stage span.
func (o *DeployObserver) StageStarted(ctx context.Context, stage string) context.Context {
	ctx, span := o.tel.Tracer.StartStageSpan(ctx, stage)
	o.tel.Events.PublishStageEvent(EventTypeStageStarted, "", stage, "stage started")
	return context.WithValue(ctx, stageSpanKey{}, span)
}

// StageFinished closes the stage span and records the outcome.
func (o *DeployObserver) StageFinished(ctx context.Context, stage string, err error, took time.Duration) {
	status := "ok"
	if err != nil {
		status = "failed"
		o.tel.Metrics.RecordError(string(deploy.KindOf(err)))
		o.tel.Events.PublishStageEvent(EventTypeStageFailed, "", stage, err.Error())
	} else {
		o.tel.Events.PublishStageEvent(EventTypeStageCompleted, "", stage, "stage completed")
	}
	o.tel.Metrics.RecordStage(stage, status, took)

	if span, ok := ctx.Value(stageSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}
}

// RunFinished closes the root span and records the terminal outcome.
func (o *DeployObserver) RunFinished(ctx context.Context, runID string, state deploy.AppState, err error, took time.Duration) {
	status := "succeeded"
	if err != nil {
		status = "failed"
		o.tel.Events.PublishDeployFailed(runID, "", err.Error())
	} else {
		o.tel.Events.PublishDeployCompleted(runID, "", took)
	}
	o.tel.Metrics.RecordDeployCompleted(status, took)

	if span, ok := ctx.Value(runSpanKey{}).(trace.Span); ok {
		span.SetAttributes(AttrRunID.String(runID))
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}
}
