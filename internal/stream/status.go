package stream

import (
	"context"
	"encoding/json"

	"github.com/cradoe/skypay/internal/onboarding"
)

// StatusTopic carries every applicant status change and review escalation.
const StatusTopic = "onboarding.status"

type Producer interface {
	ProduceMessage(topic, key string, message []byte) error
}

// StatusPublisher publishes onboarding status events keyed by applicant.
type StatusPublisher struct {
	producer Producer
}

func NewStatusPublisher(producer Producer) *StatusPublisher {
	return &StatusPublisher{producer: producer}
}

func (p *StatusPublisher) PublishStatus(ctx context.Context, event onboarding.StatusEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.producer.ProduceMessage(StatusTopic, event.ApplicantID, message)
}

func DecodeStatusEvent(message []byte) (onboarding.StatusEvent, error) {
	var event onboarding.StatusEvent
	err := json.Unmarshal(message, &event)
	return event, err
}
