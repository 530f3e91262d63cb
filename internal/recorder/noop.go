package recorder

import "context"

// NoopRecorder is a no-op implementation used when the store is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ context.Context, _ *RunRecord) error { return nil }
func (n *NoopRecorder) Recent(_ context.Context, _ int) ([]RunRecord, error) {
	return []RunRecord{}, nil
}
func (n *NoopRecorder) Close() error { return nil }
