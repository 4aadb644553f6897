package ctmsg

import (
	"context"
	"sync"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"
)

// EnvelopeHandler processes envelopes off the native servicing thread.
type EnvelopeHandler func(Envelope)

// Queue moves envelopes from the broker to subscribers running on their
// own goroutines. Offer never blocks.
type Queue struct {
	ch      chan Envelope
	workers int
	log     lgr.L

	closeMu sync.RWMutex // Offer holds it shared, Close exclusively
	closed  bool
	done    chan struct{}

	mu   sync.RWMutex
	subs []EnvelopeHandler
}

// NewQueue returns a queue buffering size envelopes, delivered by workers
// goroutines once Run is called.
func NewQueue(size, workers int) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		ch:      make(chan Envelope, size),
		done:    make(chan struct{}),
		workers: workers,
		log:     lgr.Std,
	}
}

// Subscribe adds a handler. Every envelope goes to every subscriber.
func (q *Queue) Subscribe(h EnvelopeHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs = append(q.subs, h)
}

// Offer enqueues env and reports false if the queue is full or closed.
// An accepted envelope is delivered even if Close follows right away.
func (q *Queue) Offer(env Envelope) bool {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return false
	}

	select {
	case q.ch <- env:
		return true
	default:
		return false
	}
}

// Len returns the number of buffered envelopes.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting envelopes. Workers deliver what is buffered and
// return.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
}

// Run delivers envelopes until ctx is canceled or the queue is closed.
func (q *Queue) Run(ctx context.Context) error {
	wg := syncs.NewErrSizedGroup(q.workers, syncs.Context(ctx))
	for i := 0; i < q.workers; i++ {
		wg.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
	err := wg.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			q.drain()
			return
		case env := <-q.ch:
			q.deliver(env)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case env := <-q.ch:
			q.deliver(env)
		default:
			return
		}
	}
}

func (q *Queue) deliver(env Envelope) {
	q.mu.RLock()
	subs := q.subs
	q.mu.RUnlock()

	for _, h := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					q.log.Logf("[ERROR] envelope handler panicked on %s: %v", env.ID, r)
				}
			}()
			h(env)
		}()
	}
}
