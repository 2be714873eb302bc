package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Recorder buffers events and drains them to a sink on a background
// goroutine. Record never blocks the caller: when the buffer is full the
// event is dropped and counted.
type Recorder struct {
	sink Sink
	ch   chan Event
	done chan struct{}

	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewRecorder constructs a Recorder draining into sink.
func NewRecorder(sink Sink, buffer int) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	if buffer <= 0 {
		buffer = 1
	}
	r := &Recorder{
		sink: sink,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for {
		select {
		case event := <-r.ch:
			r.sink.Record(context.Background(), event)
		case <-r.done:
			for {
				select {
				case event := <-r.ch:
					r.sink.Record(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Record implements Sink. The caller proceeds regardless of the outcome.
func (r *Recorder) Record(_ context.Context, event Event) {
	if r == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case r.ch <- event:
	case <-r.done:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full buffer.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close drains buffered events and stops the background goroutine.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}
