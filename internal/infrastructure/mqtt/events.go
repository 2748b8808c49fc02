package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-specstore/internal/device"
)

// Publisher is the subset of Client used to send events.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// EventPublisher forwards specification lifecycle events to the broker as
// JSON on Topics.SpecificationEvent. It implements device.EventPublisher.
type EventPublisher struct {
	pub Publisher
	qos byte
}

var _ device.EventPublisher = (*EventPublisher)(nil)

// NewEventPublisher creates an EventPublisher sending with the given QoS.
func NewEventPublisher(pub Publisher, qos byte) *EventPublisher {
	return &EventPublisher{pub: pub, qos: qos}
}

// PublishSpecificationEvent publishes ev, not retained.
func (p *EventPublisher) PublishSpecificationEvent(ctx context.Context, ev device.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Token == "" {
		return ErrInvalidTopic
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encoding event: %w", ErrPublishFailed, err)
	}
	return p.pub.Publish(Topics{}.SpecificationEvent(ev.Token, string(ev.Type)), payload, p.qos, false)
}
