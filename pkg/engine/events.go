package engine

import "log/slog"

// EventSink receives progress events from a running engine. Hosts choose
// what to do with them: forward to a log, push onto an event stream, or
// discard. A nil sink discards everything.
//
// Sinks are called synchronously from the engine goroutine (or an agent
// goroutine in UltraThink) and should return quickly. Panics inside a
// sink are recovered and never affect the run.
type EventSink interface {
	Emit(event string, payload map[string]interface{})
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(event string, payload map[string]interface{})

// Emit implements EventSink.
func (f SinkFunc) Emit(event string, payload map[string]interface{}) {
	f(event, payload)
}

// LogSink forwards engine events to a slog logger at debug level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging to the given logger. A nil logger
// uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "engine")}
}

// Emit implements EventSink.
func (s *LogSink) Emit(event string, payload map[string]interface{}) {
	attrs := make([]interface{}, 0, len(payload)*2+2)
	attrs = append(attrs, "event", event)
	for k, v := range payload {
		attrs = append(attrs, k, v)
	}
	s.logger.Debug("engine event", attrs...)
}

// emit delivers an event to a sink, swallowing nil sinks and panics.
func emit(sink EventSink, event string, payload map[string]interface{}) {
	if sink == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	if payload == nil {
		payload = map[string]interface{}{}
	}
	sink.Emit(event, payload)
}
