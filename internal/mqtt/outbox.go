package mqtt

import "log"

// outMsg is a serialized message waiting for the broker.
type outMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// lifecycle reports whether m is a system event rather than a measurement.
func (m outMsg) lifecycle() bool {
	return m.topic == TopicSystem
}

// outbox holds messages published while the broker is unreachable. When full
// it evicts the oldest measurement first; lifecycle events are only evicted
// once no measurement is left to make room.
// Not safe for concurrent use; caller must synchronize.
type outbox struct {
	msgs     []outMsg
	capacity int
	evicted  int // since last drain
}

func newOutbox(capacity int) *outbox {
	return &outbox{
		msgs:     make([]outMsg, 0, capacity),
		capacity: capacity,
	}
}

func (o *outbox) push(m outMsg) {
	if o.capacity <= 0 {
		o.evicted++
		return
	}
	if len(o.msgs) == o.capacity {
		if o.evicted == 0 {
			log.Printf("mqtt: outbox full (%d messages), evicting oldest measurements", o.capacity)
		}
		o.evict()
	}
	o.msgs = append(o.msgs, m)
}

// evict removes the oldest measurement, or the oldest message if only
// lifecycle events are queued.
func (o *outbox) evict() {
	victim := 0
	for i, m := range o.msgs {
		if !m.lifecycle() {
			victim = i
			break
		}
	}
	o.msgs = append(o.msgs[:victim], o.msgs[victim+1:]...)
	o.evicted++
}

// drain returns every queued message, oldest first, and the number evicted
// since the previous drain.
func (o *outbox) drain() ([]outMsg, int) {
	if len(o.msgs) == 0 && o.evicted == 0 {
		return nil, 0
	}
	msgs := o.msgs
	evicted := o.evicted
	o.msgs = make([]outMsg, 0, o.capacity)
	o.evicted = 0
	if len(msgs) == 0 {
		msgs = nil
	}
	return msgs, evicted
}

func (o *outbox) len() int {
	return len(o.msgs)
}
