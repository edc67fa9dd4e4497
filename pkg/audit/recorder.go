package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecorderConfig configures the async recorder.
type RecorderConfig struct {
	// Buffer is the size of the async event channel. Default: 1024.
	Buffer int

	// WriteTimeout bounds a single storage write. Default: 5s.
	WriteTimeout time.Duration
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() *RecorderConfig {
	return &RecorderConfig{
		Buffer:       1024,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder implements Sink with an asynchronous worker draining events into
// storage. Emitting components never block: when the buffer is full the event
// is dropped and counted, which trades completeness for pipeline liveness
// (the durable state transitions themselves are the source of truth).
type Recorder struct {
	storage Storage
	config  *RecorderConfig
	events  chan *Event
	done    chan struct{}
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu      sync.Mutex
	dropped int64
}

// NewRecorder creates a recorder and starts its worker.
func NewRecorder(storage Storage, config *RecorderConfig, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultRecorderConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage: storage,
		config:  config,
		events:  make(chan *Event, config.Buffer),
		done:    make(chan struct{}),
		logger:  logger.With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// Record enqueues an event, assigning id and timestamp if unset.
func (r *Recorder) Record(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case r.events <- &event:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		r.logger.Warn("audit buffer full, event dropped",
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"dropped_total", dropped,
		)
	}
}

// Dropped returns how many events were discarded due to a full buffer.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close drains buffered events and stops the worker.
func (r *Recorder) Close() error {
	close(r.done)
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case event := <-r.events:
			r.write(event)
		case <-r.done:
			// Drain whatever is buffered before exiting.
			for {
				select {
				case event := <-r.events:
					r.write(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Append(ctx, event); err != nil {
		r.logger.Error("failed to write audit event",
			"error", err,
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
		)
	}
}
