package interfaces

// EventPublisher delivers domain events to an external consumer. Publishing
// is best-effort from the core's point of view: a failed publish is logged,
// never surfaced to the money path.
type EventPublisher interface {
	Publish(topic string, event any) error
}
