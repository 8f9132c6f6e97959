package service

import (
	"context"

	"github.com/rs/zerolog"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: run notifications
// ─────────────────────────────────────────────────────────────

// Events emitted by PipelineService.
const (
	EventPipelineFinished = "pipeline:finished"
	EventScheduleFinished = "schedule:finished"
)

// EventEmitter receives notifications about finished runs. The service
// depends on this interface instead of a concrete sink so tests can
// record what was emitted.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes every event as a debug log line.
type LogEmitter struct {
	Log zerolog.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	e.Log.Debug().Str("event", event).Interface("data", data).Msg("event")
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}
