package bot

import (
	"context"
	"sync"
	"time"
)

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, ev Event)

// Dispatcher serializes events per user and runs different users
// concurrently. Each active user gets a worker goroutine with a FIFO queue;
// the worker exits after Idle without events. Events still queued when the
// context is cancelled are dropped.
type Dispatcher struct {
	handle HandlerFunc
	idle   time.Duration
	buffer int

	mu      sync.Mutex
	workers map[int64]*queue
	wg      sync.WaitGroup
}

// queue is one user's mailbox. senders counts Dispatch calls that hold a
// reference but have not finished sending; the worker must not retire while
// it is non-zero.
type queue struct {
	events  chan Event
	senders int
}

// NewDispatcher returns a Dispatcher calling h for every event.
func NewDispatcher(h HandlerFunc, idle time.Duration) *Dispatcher {
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &Dispatcher{
		handle:  h,
		idle:    idle,
		buffer:  64,
		workers: make(map[int64]*queue),
	}
}

// Dispatch enqueues ev on the sender's queue, starting a worker when needed.
// It blocks while that user's queue is full and returns ctx.Err() on
// cancellation. A full queue never delays other users.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.Lock()
	q, ok := d.workers[ev.UserID]
	if !ok {
		q = &queue{events: make(chan Event, d.buffer)}
		d.workers[ev.UserID] = q
		d.wg.Add(1)
		go d.work(ctx, ev.UserID, q)
	}
	q.senders++
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		q.senders--
		d.mu.Unlock()
	}()

	select {
	case q.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context, userID int64, q *queue) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idle)
	defer idle.Stop()
	for {
		select {
		case ev := <-q.events:
			d.handle(ctx, ev)
			idle.Reset(d.idle)
		case <-idle.C:
			d.mu.Lock()
			if len(q.events) == 0 && q.senders == 0 {
				delete(d.workers, userID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(d.idle)
		case <-ctx.Done():
			d.mu.Lock()
			if d.workers[userID] == q {
				delete(d.workers, userID)
			}
			d.mu.Unlock()
			return
		}
	}
}

// Active returns the number of live workers.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
