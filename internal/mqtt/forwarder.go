package mqtt

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/sweeney/rc-ledctrl/internal/logic"
)

// Forwarder hands reports from the control loop to a Publisher on its own
// goroutine. Observe never blocks: when the queue is full the report is
// dropped and counted.
type Forwarder struct {
	pub     Publisher
	queue   chan logic.Report
	dropped atomic.Uint64
}

// NewForwarder creates a Forwarder with room for size queued reports.
func NewForwarder(pub Publisher, size int) *Forwarder {
	return &Forwarder{pub: pub, queue: make(chan logic.Report, size)}
}

// Observe queues a report for publishing.
func (f *Forwarder) Observe(r logic.Report) {
	select {
	case f.queue <- r:
	default:
		f.dropped.Add(1)
	}
}

// Dropped returns the number of reports discarded because the queue was full.
func (f *Forwarder) Dropped() uint64 {
	return f.dropped.Load()
}

// Run publishes queued reports until ctx is done, then publishes whatever is
// still queued.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case r := <-f.queue:
			f.publish(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-f.queue:
					f.publish(r)
				default:
					return
				}
			}
		}
	}
}

func (f *Forwarder) publish(r logic.Report) {
	if err := f.pub.Publish(r); err != nil {
		log.Printf("publish error: %v", err)
	}
}
