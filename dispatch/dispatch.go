// Package dispatch fans transcription results out to independent sinks.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hotscribe/log"
	"hotscribe/metrics"
	"hotscribe/transcript"
)

var (
	// ErrDisconnected is returned (possibly wrapped) by sinks that will never
	// accept another delivery. The dispatcher unregisters them.
	ErrDisconnected = errors.New("sink disconnected")
	ErrSinkTimeout  = errors.New("sink delivery timed out")
)

const (
	DefaultTimeout   = 2 * time.Second
	DefaultQueueSize = 64
)

type Sink interface {
	Name() string
	Deliver(ctx context.Context, r transcript.Result) error
}

type Handle uint64

type Dispatcher struct {
	timeout   time.Duration
	queueSize int

	mu      sync.RWMutex
	workers map[Handle]*worker
	next    Handle
	closed  bool
	wg      sync.WaitGroup
}

func New(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		timeout:   timeout,
		queueSize: DefaultQueueSize,
		workers:   make(map[Handle]*worker),
	}
}

// SetQueueSize bounds how many results may wait for a slow sink. It only
// affects sinks registered afterwards.
func (d *Dispatcher) SetQueueSize(n int) {
	d.mu.Lock()
	d.queueSize = max(n, 1)
	d.mu.Unlock()
}

func (d *Dispatcher) Register(s Sink) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	h := d.next
	w := &worker{
		d:      d,
		handle: h,
		sink:   s,
		limit:  d.queueSize,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	if d.closed {
		return h
	}
	d.workers[h] = w
	metrics.Sinks.Set(float64(len(d.workers)))

	d.wg.Add(1)
	go w.run()
	log.Infof("sink registered: %s (#%d)", s.Name(), h)
	return h
}

func (d *Dispatcher) Unregister(h Handle) {
	d.mu.Lock()
	w, ok := d.workers[h]
	if ok {
		delete(d.workers, h)
		metrics.Sinks.Set(float64(len(d.workers)))
	}
	d.mu.Unlock()

	if ok {
		close(w.stop)
		log.Infof("sink unregistered: %s (#%d)", w.sink.Name(), h)
	}
}

func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.workers)
}

// Broadcast queues r for every sink registered at the time of the call. It
// never blocks on a sink.
func (d *Dispatcher) Broadcast(r transcript.Result) {
	d.mu.RLock()
	snapshot := make([]*worker, 0, len(d.workers))
	for _, w := range d.workers {
		snapshot = append(snapshot, w)
	}
	d.mu.RUnlock()

	log.Dispatch(r.SessionID, len(snapshot), r.IsError())
	for _, w := range snapshot {
		w.enqueue(r)
	}
}

// Close unregisters every sink and waits up to grace for in-flight
// deliveries to finish. Queued results are delivered first.
func (d *Dispatcher) Close(grace time.Duration) {
	d.mu.Lock()
	d.closed = true
	workers := d.workers
	d.workers = make(map[Handle]*worker)
	metrics.Sinks.Set(0)
	d.mu.Unlock()

	for _, w := range workers {
		w.drainThenStop()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		log.Warnf("dispatcher: %d sink(s) still busy after %v", len(workers), grace)
	}
}

type worker struct {
	d      *Dispatcher
	handle Handle
	sink   Sink
	limit  int

	mu    sync.Mutex
	queue []transcript.Result
	drain bool

	wake chan struct{}
	stop chan struct{}
}

func (w *worker) enqueue(r transcript.Result) {
	w.mu.Lock()
	if len(w.queue) >= w.limit {
		w.queue = w.queue[1:]
		metrics.DispatchDropped.WithLabelValues(w.sink.Name()).Inc()
		log.Warnf("sink %s: queue full, dropped oldest result", w.sink.Name())
	}
	w.queue = append(w.queue, r)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) drainThenStop() {
	w.mu.Lock()
	w.drain = true
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) next() (transcript.Result, bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return transcript.Result{}, false, w.drain
	}
	r := w.queue[0]
	w.queue = w.queue[1:]
	return r, true, false
}

func (w *worker) run() {
	defer w.d.wg.Done()
	for {
		r, ok, finished := w.next()
		if finished {
			return
		}
		if !ok {
			select {
			case <-w.wake:
			case <-w.stop:
				return
			}
			continue
		}

		select {
		case <-w.stop:
			return
		default:
		}

		if err := w.deliver(r); err != nil {
			name := w.sink.Name()
			log.SinkError(name, err)
			if errors.Is(err, ErrDisconnected) {
				metrics.SinkDeliveries.WithLabelValues(name, "disconnected").Inc()
				w.d.Unregister(w.handle)
				return
			}
			outcome := "error"
			if errors.Is(err, ErrSinkTimeout) {
				outcome = "timeout"
			}
			metrics.SinkDeliveries.WithLabelValues(name, outcome).Inc()
			continue
		}
		metrics.SinkDeliveries.WithLabelValues(w.sink.Name(), "ok").Inc()
	}
}

// deliver runs one Deliver call under the dispatcher timeout. A sink that
// ignores its context is abandoned once the timeout passes.
func (w *worker) deliver(r transcript.Result) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("sink panicked: %v", p)
			}
		}()
		done <- w.sink.Deliver(ctx, r)
	}()

	select {
	case err = <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrSinkTimeout, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %v", ErrSinkTimeout, w.d.timeout)
	}
}
