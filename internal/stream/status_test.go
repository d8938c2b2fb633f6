package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	topic, key string
	message    []byte
	err        error
}

func (p *fakeProducer) ProduceMessage(topic, key string, message []byte) error {
	p.topic, p.key, p.message = topic, key, message
	return p.err
}

func TestStatusPublisher(t *testing.T) {
	producer := &fakeProducer{}
	publisher := NewStatusPublisher(producer)

	event := onboarding.StatusEvent{
		ApplicantID:  "a1",
		Email:        "ada@acme.ng",
		BusinessName: "Acme Ltd",
		From:         models.ApplicantSettlementVerified,
		To:           models.ApplicantPendingAdminReview,
		OccurredAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, publisher.PublishStatus(context.Background(), event))
	assert.Equal(t, StatusTopic, producer.topic)
	assert.Equal(t, "a1", producer.key)

	decoded, err := DecodeStatusEvent(producer.message)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)

	producer.err = errors.New("broker down")
	assert.EqualError(t, publisher.PublishStatus(context.Background(), event), "broker down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, publisher.PublishStatus(ctx, event), context.Canceled)
}
