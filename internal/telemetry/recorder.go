// Package telemetry records evaluation, delivery, ingestion and API metrics
// to Prometheus or CloudWatch. Consumers depend on the narrow interfaces they
// declare; every recorder here satisfies all of them.
package telemetry

import (
	"context"
	"time"
)

// Delivery outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeFailed       = "failed"
	OutcomeUnregistered = "unregistered"
	OutcomeSkipped      = "skipped"
)

// Alert outcomes.
const (
	AlertDispatched = "dispatched"
	AlertSuppressed = "suppressed"
	AlertFailed     = "failed"
)

// Recorder is the full metric surface of the service.
type Recorder interface {
	ObserveCycle(ctx context.Context, duration time.Duration, evaluated, failed int)
	RecordTier(ctx context.Context, tier string)
	RecordAnomaly(ctx context.Context)
	RecordAlert(ctx context.Context, outcome string)
	RecordDelivery(ctx context.Context, outcome string)
	RecordIngest(ctx context.Context, accepted, rejected int)
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) ObserveCycle(context.Context, time.Duration, int, int) {}
func (Nop) RecordTier(context.Context, string)                    {}
func (Nop) RecordAnomaly(context.Context)                         {}
func (Nop) RecordAlert(context.Context, string)                   {}
func (Nop) RecordDelivery(context.Context, string)                {}
func (Nop) RecordIngest(context.Context, int, int)                {}
func (Nop) RecordRequest(string, string, string, time.Duration)   {}
