package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/minerva/pkg/meter"
)

// Config contains configuration for the ledger recorder.
type Config struct {
	// Enabled enables ledger recording.
	Enabled bool

	// BufferSize is the size of the async write channel buffer.
	// Default: 1024
	BufferSize int

	// WriteTimeout bounds both a full-buffer enqueue and a single storage
	// write. Default: 5 seconds
	WriteTimeout time.Duration

	// Logger receives recorder diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		BufferSize:   1024,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder persists ledger records asynchronously so the request path never
// waits on storage. Records are enqueued to a buffered channel and drained
// by a background worker; when the buffer stays full past the write timeout
// the record is dropped with a warning.
type Recorder struct {
	store   Store
	config  *Config
	records chan *Record
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	logger  *slog.Logger
}

// NewRecorder creates a recorder draining into the given store. A nil store
// disables recording regardless of configuration.
func NewRecorder(store Store, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:   store,
		config:  config,
		records: make(chan *Record, config.BufferSize),
		done:    make(chan struct{}),
		logger:  logger.With("component", "ledger.recorder"),
	}

	if !r.Enabled() {
		return r
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("ledger recorder initialized",
		"buffer_size", config.BufferSize,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Enabled reports whether records are being persisted.
func (r *Recorder) Enabled() bool {
	return r.config.Enabled && r.store != nil
}

// Add enqueues a record for asynchronous persistence. Missing ID and Time
// fields are filled in. When the buffer stays full past the write timeout
// the record is dropped with a warning and a RecorderError is returned; the
// caller is never blocked longer than that.
func (r *Recorder) Add(record *Record) error {
	if !r.Enabled() {
		return nil
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Time.IsZero() {
		record.Time = time.Now()
	}

	select {
	case r.records <- record:
		return nil
	default:
	}

	// Buffer full: wait up to the write timeout before dropping
	select {
	case r.records <- record:
		return nil
	case <-time.After(r.config.WriteTimeout):
		r.logger.Warn("ledger buffer full, dropping record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"buffer_size", r.config.BufferSize,
		)
		return NewRecorderError(record.ID, context.DeadlineExceeded)
	case <-r.done:
		r.logger.Warn("recorder shutting down, dropping record",
			"record_id", record.ID,
			"request_id", record.RequestID,
		)
		return NewRecorderError(record.ID, context.Canceled)
	}
}

// MeterHook adapts the recorder to the meter's per-call events. The
// request-scoped fields come from the closure; each event supplies the call
// data. The hook enqueues without waiting: with a full buffer the event is
// dropped immediately, since meter hooks run on the request path.
func (r *Recorder) MeterHook(requestID, endpoint, engine string) func(meter.RecordEvent) {
	return func(ev meter.RecordEvent) {
		if !r.Enabled() {
			return
		}
		record := &Record{
			ID:         uuid.New().String(),
			Time:       ev.Time,
			RequestID:  requestID,
			Endpoint:   endpoint,
			Engine:     engine,
			Stage:      ev.Stage,
			Provider:   ev.Provider,
			Model:      ev.Model,
			Usage:      ev.Stats,
			CostUSD:    ev.CostUSD,
			DurationMS: ev.Duration.Milliseconds(),
			Status:     StatusOK,
		}
		select {
		case r.records <- record:
		default:
			r.logger.Warn("ledger buffer full, dropping metered call",
				"request_id", requestID,
				"provider", ev.Provider,
				"model", ev.Model,
			)
		}
	}
}

// Close drains the buffer and waits for pending writes to finish.
func (r *Recorder) Close() error {
	if !r.Enabled() {
		return nil
	}

	r.once.Do(func() {
		r.logger.Info("shutting down ledger recorder")
		close(r.done)
		r.wg.Wait()
		r.logger.Info("ledger recorder shut down")
	})
	return nil
}

// worker drains the record channel and writes records to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.records:
			r.writeRecord(record)

		case <-r.done:
			// Drain what is buffered before exiting
			for {
				select {
				case record := <-r.records:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

// writeRecord writes a single record with the configured timeout.
func (r *Recorder) writeRecord(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.store.Store(ctx, record); err != nil {
		r.logger.Error("failed to store ledger record",
			"record_id", record.ID,
			"request_id", record.RequestID,
			"error", err,
		)
		return
	}

	if elapsed := time.Since(start); elapsed > r.config.WriteTimeout/2 {
		r.logger.Warn("slow ledger write",
			"record_id", record.ID,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
}
