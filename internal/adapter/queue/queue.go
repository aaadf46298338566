// Package queue carries turn analytics events to downstream consumers
// (usage dashboards, model retraining pipelines). Delivery is best
// effort: a failed publish is logged by the caller and never fails the
// turn that produced it.
package queue

// MessageQueue is the broker-neutral publish/subscribe surface. Subjects
// are dot-separated event names such as "parlance.turn.completed".
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}
