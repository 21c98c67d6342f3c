/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package transport

import "sync"

// inbox is an unbounded event queue in front of a channel. Producers never
// wait on the consumer; a pump goroutine feeds out in arrival order.
type inbox struct {
	mu     sync.Mutex
	queue  []Event
	closed bool

	wake chan struct{}
	done chan struct{}
	out  chan Event
}

func newInbox() *inbox {
	in := &inbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Event),
	}

	go in.pump()

	return in
}

func (in *inbox) push(ev Event) {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.queue = append(in.queue, ev)
	in.mu.Unlock()

	select {
	case in.wake <- struct{}{}:
	default:
	}
}

func (in *inbox) pump() {
	defer close(in.out)

	for {
		in.mu.Lock()
		if len(in.queue) == 0 {
			in.mu.Unlock()

			select {
			case <-in.wake:
				continue
			case <-in.done:
				return
			}
		}

		ev := in.queue[0]
		in.queue[0] = Event{}
		in.queue = in.queue[1:]
		in.mu.Unlock()

		select {
		case in.out <- ev:
		case <-in.done:
			return
		}
	}
}

// close drops anything still queued and closes out.
func (in *inbox) close() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return
	}
	in.closed = true
	in.queue = nil
	close(in.done)
}
