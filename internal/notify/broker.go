package notify

import "context"

// EventPublisher is the part of the SSE broker used here.
type EventPublisher interface {
	PublishChange(kind string, data any)
}

// Broker forwards notifications to connected SSE clients, using the
// notification kind as the event name.
type Broker struct {
	Events EventPublisher
}

func (b Broker) Notify(_ context.Context, n Notification) error {
	b.Events.PublishChange(n.Kind, n)
	return nil
}
