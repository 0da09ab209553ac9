package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/blood-camps/internal/config"
	"github.com/jakechorley/blood-camps/pkg/core/model"
	"github.com/jakechorley/blood-camps/pkg/metrics"
)

const deliveryTimeout = 30 * time.Second

// Sink delivers an event to one destination
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event model.Event) error
}

// Dispatcher fans committed events out to sinks on background workers.
// Notify never blocks: when the queue is full the event is dropped and counted.
type Dispatcher struct {
	queue   chan model.Event
	sinks   []Sink
	workers int
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Call Start before events are expected to be delivered.
func NewDispatcher(cfg config.NotificationsConfig, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:   make(chan model.Event, queueSize),
		sinks:   sinks,
		workers: workers,
		logger:  logger,
	}
}

// Start launches the worker goroutines
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.logger.Debug("Notification dispatcher started",
		zap.Int("workers", d.workers),
		zap.Int("queue_size", cap(d.queue)),
		zap.Int("sinks", len(d.sinks)))
}

// Notify enqueues an event without blocking
func (d *Dispatcher) Notify(event model.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(event, "dispatcher closed")
		return
	}

	select {
	case d.queue <- event:
	default:
		d.drop(event, "queue full")
	}
}

func (d *Dispatcher) drop(event model.Event, reason string) {
	metrics.NotificationsDropped.WithLabelValues(string(event.Type)).Inc()
	d.logger.Warn("Dropped notification",
		zap.String("reason", reason),
		zap.String("event", string(event.Type)),
		zap.String("ref_id", event.RefID))
}

// Close stops accepting events, drains the queue and waits for the workers
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Debug("Notification dispatcher stopped")
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for event := range d.queue {
		d.dispatch(event)
	}
}

func (d *Dispatcher) dispatch(event model.Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := sink.Deliver(ctx, event)
		cancel()

		if err != nil {
			metrics.NotificationsDelivered.WithLabelValues(sink.Name(), "failure").Inc()
			d.logger.Warn("Notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("event", string(event.Type)),
				zap.String("ref_id", event.RefID),
				zap.Error(err))
			continue
		}
		metrics.NotificationsDelivered.WithLabelValues(sink.Name(), "success").Inc()
	}
}
