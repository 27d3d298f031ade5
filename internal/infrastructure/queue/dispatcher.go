package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/contentforge/studio-api/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes operation events to a fixed set of workers using
// consistent hashing on the user ID, guaranteeing per-user event ordering
// in the audit trail.
type Dispatcher struct {
	workers []chan ports.OperationEvent
	sink    ports.OperationSink
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sink ports.OperationSink, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.OperationEvent, numWorkers),
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.OperationEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends an event to the worker responsible for its user.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Enqueue(ev ports.OperationEvent) {
	d.workers[d.shardIndex(ev.UserID)] <- ev
}

// shardIndex maps a user ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.OperationEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := d.sink.Record(ctx, ev); err != nil {
				d.log.Error().Err(err).
					Str("user_id", ev.UserID).
					Str("feature", ev.Feature).
					Int("worker_id", id).
					Msg("operation event recording failed")
			}
		}
	}
}
