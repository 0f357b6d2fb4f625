package ipc

// fifo is a strict first-in-first-out message queue. Single-writer: the
// gateway goroutine is the only code that touches it, so there is no
// locking here.
type fifo struct {
	msgs []Message
}

func (q *fifo) enqueue(m Message) {
	q.msgs = append(q.msgs, m)
}

// dequeue pops the oldest message. The vacated slot is cleared so the
// payload can be collected, and the backing array is released once the
// queue drains.
func (q *fifo) dequeue() (Message, bool) {
	if len(q.msgs) == 0 {
		return Message{}, false
	}
	m := q.msgs[0]
	q.msgs[0] = Message{}
	q.msgs = q.msgs[1:]
	if len(q.msgs) == 0 {
		q.msgs = nil
	}
	return m, true
}

func (q *fifo) depth() int {
	return len(q.msgs)
}
