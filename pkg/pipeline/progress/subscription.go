package progress

import (
	"sync"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

// Subscription is one observer of a Channel.
type Subscription struct {
	channel *Channel

	mu     sync.Mutex
	queue  []model.Event
	ended  bool
	notify chan struct{}

	out       chan model.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(c *Channel) *Subscription {
	sub := &Subscription{
		channel: c,
		notify:  make(chan struct{}, 1),
		out:     make(chan model.Event),
		done:    make(chan struct{}),
	}
	go sub.pump()

	return sub
}

// Events returns the delivery channel. It is closed once the producer closed the Channel and
// every queued event was received, or as soon as the subscription is closed.
func (s *Subscription) Events() <-chan model.Event {
	return s.out
}

// Close detaches the observer. Queued events are discarded. It is safe to call Close
// concurrently with Publish and more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.channel.remove(s)

		s.mu.Lock()
		s.queue = nil
		s.mu.Unlock()
	})
}

func (s *Subscription) push(event model.Event) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()

		return
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription) end() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// pump moves queued events to the delivery channel, one at a time and in order.
func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			ended := s.ended
			s.mu.Unlock()

			if ended {
				return
			}

			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}

		next := s.queue[0]
		s.queue[0] = model.Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
