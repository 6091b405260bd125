// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Operation labels recorded against FlowRecorder metrics.
const (
	OperationDiscovery    = "discovery"
	OperationRegistration = "registration"
	OperationExchange     = "token_exchange"
	OperationRefresh      = "token_refresh"
)

// FlowRecorder receives telemetry about authentication flow operations.
// Implementations must be safe for concurrent use.
type FlowRecorder interface {
	RecordOperation(ctx context.Context, operation string)
	RecordError(ctx context.Context, operation string)
	RecordLatency(ctx context.Context, operation string, latencyMs float64)
}

// OTelFlowRecorder reports flow metrics through an OpenTelemetry meter.
type OTelFlowRecorder struct {
	operations metric.Int64Counter
	errors     metric.Int64Counter
	latency    metric.Float64Histogram
}

// NewOTelFlowRecorder builds a recorder on the global meter provider.
func NewOTelFlowRecorder(meterName string) (*OTelFlowRecorder, error) {
	meter := otel.Meter(meterName)

	operations, err := meter.Int64Counter("auth_flow_operations_total",
		metric.WithDescription("Authentication flow operations started"))
	if err != nil {
		return nil, err
	}
	errCounter, err := meter.Int64Counter("auth_flow_errors_total",
		metric.WithDescription("Authentication flow operations that failed"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("auth_flow_latency_ms",
		metric.WithDescription("Authentication flow operation latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &OTelFlowRecorder{
		operations: operations,
		errors:     errCounter,
		latency:    latency,
	}, nil
}

func (r *OTelFlowRecorder) RecordOperation(ctx context.Context, operation string) {
	r.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("auth.operation", operation)))
}

func (r *OTelFlowRecorder) RecordError(ctx context.Context, operation string) {
	r.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("auth.operation", operation)))
}

func (r *OTelFlowRecorder) RecordLatency(ctx context.Context, operation string, latencyMs float64) {
	r.latency.Record(ctx, latencyMs, metric.WithAttributes(attribute.String("auth.operation", operation)))
}

// observeFlow records one completed operation against an optional
// recorder.
func observeFlow(ctx context.Context, recorder FlowRecorder, operation string, start time.Time, err error) {
	if recorder == nil {
		return
	}
	recorder.RecordOperation(ctx, operation)
	recorder.RecordLatency(ctx, operation, float64(time.Since(start).Microseconds())/1000.0)
	if err != nil {
		recorder.RecordError(ctx, operation)
	}
}
