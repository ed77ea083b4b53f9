package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"mercator-hq/minerva/pkg/config"
)

// LogFormat selects the output encoding.
type LogFormat string

const (
	// FormatJSON emits one JSON object per line.
	FormatJSON LogFormat = "json"
	// FormatText emits logfmt-style key=value lines.
	FormatText LogFormat = "text"
)

// Logger wraps log/slog with secret redaction and an async write buffer.
// Handlers and engines receive the underlying *slog.Logger via Slog();
// the wrapper owns the buffer lifecycle and the redaction pass.
type Logger struct {
	slog     *slog.Logger
	redactor *Redactor
	level    slog.Level
	format   LogFormat
	buffer   *LogBuffer
}

// Options configures a Logger.
type Options struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string

	// Format is "json" or "text".
	Format string

	// AddSource includes file:line in records.
	AddSource bool

	// Redact enables secret redaction of log values.
	Redact bool

	// RedactPatterns adds custom redaction patterns on top of the
	// built-in ones.
	RedactPatterns []config.RedactPattern

	// BufferSize is the async buffer capacity in encoded lines.
	// Zero disables buffering and writes synchronously.
	BufferSize int

	// Writer receives encoded records. Defaults to os.Stdout.
	Writer io.Writer
}

// New creates a Logger.
func New(opts Options) (*Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := parseFormat(opts.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	var redactor *Redactor
	if opts.Redact {
		redactor = NewRedactor(opts.RedactPatterns)
	}

	var buffer *LogBuffer
	sink := w
	if opts.BufferSize > 0 {
		buffer = NewLogBuffer(w, opts.BufferSize)
		buffer.Start()
		sink = buffer
	}

	ho := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}
	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(sink, ho)
	default:
		handler = slog.NewJSONHandler(sink, ho)
	}

	return &Logger{
		slog:     slog.New(handler),
		redactor: redactor,
		level:    level,
		format:   format,
		buffer:   buffer,
	}, nil
}

// FromConfig builds a Logger from the service logging configuration.
func FromConfig(cfg *config.LoggingConfig, w io.Writer) (*Logger, error) {
	if cfg == nil {
		return New(Options{Writer: w})
	}
	return New(Options{
		Level:          cfg.Level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		Redact:         cfg.RedactPII,
		RedactPatterns: cfg.RedactPatterns,
		BufferSize:     cfg.BufferSize,
		Writer:         w,
	})
}

// Slog returns the underlying *slog.Logger for packages that take the
// standard type. Redaction applies only to values passed through the
// wrapper methods; callers logging secrets directly must redact first.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

// DebugContext logs at debug level with fields extracted from ctx.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, append(extractContextFields(ctx), args...)...)
}

// InfoContext logs at info level with fields extracted from ctx.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, append(extractContextFields(ctx), args...)...)
}

// WarnContext logs at warn level with fields extracted from ctx.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, append(extractContextFields(ctx), args...)...)
}

// ErrorContext logs at error level with fields extracted from ctx.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, append(extractContextFields(ctx), args...)...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.slog.Enabled(ctx, level) {
		return
	}
	if l.redactor != nil {
		args = l.redactor.RedactArgs(args...)
	}
	l.slog.Log(ctx, level, msg, args...)
}

// With returns a Logger carrying additional fields.
func (l *Logger) With(args ...any) *Logger {
	if l.redactor != nil {
		args = l.redactor.RedactArgs(args...)
	}
	clone := *l
	clone.slog = l.slog.With(args...)
	return &clone
}

// WithContext returns a Logger carrying the fields found in ctx
// (request id, provider, model, engine, stage).
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// Shutdown flushes the async buffer. Safe to call more than once.
func (l *Logger) Shutdown() error {
	if l.buffer != nil {
		l.buffer.Stop()
	}
	return nil
}

// LogBuffer decouples log encoding from the output writer. Encoded
// lines are queued on a channel and written by a single goroutine;
// when the queue is full the line is dropped and counted rather than
// blocking the request path.
type LogBuffer struct {
	lines    chan []byte
	writer   io.Writer
	dropped  atomic.Int64
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewLogBuffer creates a buffer of the given capacity over w.
func NewLogBuffer(w io.Writer, size int) *LogBuffer {
	return &LogBuffer{
		lines:  make(chan []byte, size),
		writer: w,
		done:   make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (lb *LogBuffer) Start() {
	lb.wg.Add(1)
	go lb.run()
}

func (lb *LogBuffer) run() {
	defer lb.wg.Done()
	for {
		select {
		case line := <-lb.lines:
			lb.writer.Write(line) //nolint:errcheck // nowhere to report
		case <-lb.done:
			for {
				select {
				case line := <-lb.lines:
					lb.writer.Write(line) //nolint:errcheck
				default:
					return
				}
			}
		}
	}
}

// Write queues one encoded record. slog handlers call Write once per
// record, so the copy below preserves line atomicity.
func (lb *LogBuffer) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	select {
	case lb.lines <- line:
	default:
		lb.dropped.Add(1)
	}
	return len(p), nil
}

// Stop drains pending lines and stops the writer goroutine.
func (lb *LogBuffer) Stop() {
	lb.stopOnce.Do(func() { close(lb.done) })
	lb.wg.Wait()
}

// DroppedCount reports how many lines were discarded on overflow.
func (lb *LogBuffer) DroppedCount() int64 {
	return lb.dropped.Load()
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug, nil
	case "info", "INFO", "":
		return slog.LevelInfo, nil
	case "warn", "WARN", "warning", "WARNING":
		return slog.LevelWarn, nil
	case "error", "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

func parseFormat(s string) (LogFormat, error) {
	switch s {
	case "json", "JSON", "":
		return FormatJSON, nil
	case "text", "TEXT":
		return FormatText, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", s)
	}
}
