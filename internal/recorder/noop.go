package recorder

import (
	"context"

	"PriceSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordObservation(_ context.Context, _ *ObservationRecord) error   { return nil }
func (n *NoopRecorder) RecordAlert(_ context.Context, _ string, _ model.AlertEvent) error { return nil }
func (n *NoopRecorder) RecordCycle(_ context.Context, _ *model.CycleResult) error         { return nil }
func (n *NoopRecorder) Close() error                                                      { return nil }
