package service

import "sync"

// EventType defines the type of event
type EventType string

const (
	// EventDevice carries a full device snapshot after a create or update
	EventDevice EventType = "device"
	// EventTimeline carries a join/leave presence event
	EventTimeline EventType = "event"
)

// Event represents an event that occurred in the system
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventBus allows publishing and subscribing to events. Publish never
// blocks and never drops: each subscriber owns an unbounded queue drained
// by its own pump goroutine, so a slow consumer delays only itself.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	closed      bool
}

// Subscriber receives events in publish order on C until Close is called.
type Subscriber struct {
	bus   *EventBus
	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
	done  chan struct{}
	out   chan Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber and starts its delivery pump.
func (eb *EventBus) Subscribe() *Subscriber {
	s := &Subscriber{
		bus:  eb,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Event),
	}

	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		close(s.out)
		close(s.done)
		return s
	}
	eb.subscribers[s] = struct{}{}
	eb.mu.Unlock()

	go s.pump()
	return s
}

// Publish sends an event to all subscribers without blocking.
func (eb *EventBus) Publish(event Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for s := range eb.subscribers {
		s.enqueue(event)
	}
}

// Close detaches all subscribers and stops the bus.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	subs := make([]*Subscriber, 0, len(eb.subscribers))
	for s := range eb.subscribers {
		subs = append(subs, s)
	}
	eb.closed = true
	eb.subscribers = make(map[*Subscriber]struct{})
	eb.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

// C returns the channel events are delivered on. It is closed when the
// subscriber or the bus closes.
func (s *Subscriber) C() <-chan Event {
	return s.out
}

// Close detaches the subscriber from the bus and closes its channel.
// Queued but undelivered events are discarded.
func (s *Subscriber) Close() {
	s.bus.mu.Lock()
	_, active := s.bus.subscribers[s]
	delete(s.bus.subscribers, s)
	s.bus.mu.Unlock()

	if active {
		s.stop()
	}
}

func (s *Subscriber) enqueue(event Event) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscriber) stop() {
	close(s.done)
}

func (s *Subscriber) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		var next Event
		have := len(s.queue) > 0
		if have {
			next = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if !have {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
