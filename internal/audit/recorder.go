// Package audit delivers one event per finished merge/split operation to
// history consumers: the log, webhooks, or several of them at once.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kilupskalvis/lexmerge/internal/models"
)

// Event types.
const (
	EventCompleted = "operation.completed"
	EventFailed    = "operation.failed"
)

// Event is the payload handed to a Recorder. It carries the terminal
// operation together with its result.
type Event struct {
	Event     string            `json:"event"`
	Operation *models.Operation `json:"operation"`
	Result    *models.Result    `json:"result,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// NewEvent builds the event for a terminal operation.
func NewEvent(op *models.Operation) *Event {
	name := EventCompleted
	if op.Status == models.StatusFailed {
		name = EventFailed
	}
	return &Event{
		Event:     name,
		Operation: op,
		Result:    op.Result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Recorder receives one event per completed or failed operation.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// LogRecorder writes events to a slog logger.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a recorder logging to logger, or slog.Default when nil.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record logs the event. It never fails.
func (lr *LogRecorder) Record(ctx context.Context, event *Event) error {
	op := event.Operation
	attrs := []any{
		"operation_id", op.ID,
		"type", op.Type,
		"status", op.Status,
		"actor", op.Actor,
		"senses", op.SenseIDs,
	}
	if r := event.Result; r != nil {
		attrs = append(attrs, "transferred", len(r.TransferredSenses), "conflicts", r.ConflictsResolved)
		if len(r.Errors) > 0 {
			attrs = append(attrs, "error_kind", r.Errors[0].Kind, "error", r.Errors[0].Message)
		}
	}
	level := slog.LevelInfo
	if op.Status == models.StatusFailed {
		level = slog.LevelWarn
	}
	lr.logger.Log(ctx, level, "audit: "+event.Event, attrs...)
	return nil
}

// MultiRecorder fans an event out to every recorder. Every recorder is
// called even when an earlier one fails.
type MultiRecorder []Recorder

// Record delivers event to each recorder and joins their errors.
func (m MultiRecorder) Record(ctx context.Context, event *Event) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
