package progress

import (
	"sync"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

// Publisher is the producer side of a Channel.
type Publisher interface {
	Publish(event model.Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(event model.Event)

func (f PublisherFunc) Publish(event model.Event) {
	f(event)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(model.Event) {})

// Channel is an ordered, multi-reader event transport.
type Channel struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New creates an open channel without subscribers.
func New() *Channel {
	return &Channel{
		subs: make(map[*Subscription]struct{}),
	}
}

// Publish delivers event to every current subscriber. It never blocks.
// Publishing on a closed channel is a no-op.
func (c *Channel) Publish(event model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	for sub := range c.subs {
		sub.push(event)
	}
}

// Subscribe attaches a new observer. Only events published after the call are delivered.
// Subscribing to a closed channel returns an already finished subscription.
func (c *Channel) Subscribe() *Subscription {
	sub := newSubscription(c)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.end()

		return sub
	}
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	return sub
}

// Close ends the stream. Each subscription delivers what it already queued, then closes its
// Events channel. Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for sub := range c.subs {
		sub.end()
	}
	c.subs = nil
}

// Subscribers returns the number of attached observers.
func (c *Channel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.subs)
}

func (c *Channel) remove(sub *Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.subs, sub)
}

var _ Publisher = (*Channel)(nil)
