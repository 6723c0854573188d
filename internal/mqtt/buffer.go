package mqtt

// bufferedMsg is a serialized MQTT message waiting for the broker.
// Messages with a key are coalesced: a newer one replaces the queued one.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	key      string
}

// outbox is a bounded FIFO of messages held while the broker is unreachable.
// When full, the oldest keyed message is evicted first so that alarm events
// outlive heartbeats. Not safe for concurrent use; caller must synchronize.
type outbox struct {
	msgs    []bufferedMsg
	size    int
	dropped int // since last drain
}

func newOutbox(size int) *outbox {
	return &outbox{msgs: make([]bufferedMsg, 0, size), size: size}
}

// push queues msg. It returns true for the first eviction since the last drain.
func (o *outbox) push(msg bufferedMsg) (firstDrop bool) {
	if msg.key != "" {
		if i := o.indexOf(func(m bufferedMsg) bool { return m.key == msg.key }); i >= 0 {
			o.remove(i)
		}
	}

	if len(o.msgs) == o.size {
		victim := o.indexOf(func(m bufferedMsg) bool { return m.key != "" })
		if victim < 0 {
			victim = 0
		}
		o.remove(victim)
		o.dropped++
		firstDrop = o.dropped == 1
	}

	o.msgs = append(o.msgs, msg)
	return firstDrop
}

// drain returns the queued messages oldest first and empties the outbox.
func (o *outbox) drain() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = make([]bufferedMsg, 0, o.size)
	o.dropped = 0
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}

func (o *outbox) indexOf(match func(bufferedMsg) bool) int {
	for i, m := range o.msgs {
		if match(m) {
			return i
		}
	}
	return -1
}

func (o *outbox) remove(i int) {
	copy(o.msgs[i:], o.msgs[i+1:])
	o.msgs = o.msgs[:len(o.msgs)-1]
}
