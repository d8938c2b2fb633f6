// Status events are published by the orchestrator whenever an applicant moves.
// Applicants hear about the final decision; reviewers hear about every applicant
// that needs one, and again when the review is escalated past its SLA.
package worker

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/cradoe/skypay/internal/models"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/cradoe/skypay/internal/stream"
)

func (wk *Worker) StatusNotificationWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: statusNotificationGroupID,
		Topic:   stream.StatusTopic,
	})
	if err != nil {
		wk.Logger.Error("error creating status consumer", "error", err)
		return
	}
	defer consumer.Close()

	for {
		select {
		case <-wk.Ctx.Done():
			wk.Logger.Info("status notification worker received cancellation signal, shutting down")
			return
		default:
			event := consumer.Poll(100)
			switch e := event.(type) {
			case *kafka.Message:
				statusEvent, err := stream.DecodeStatusEvent(e.Value)
				if err != nil {
					wk.Logger.Error("discarding malformed status event", "error", err)
					continue
				}

				if err := wk.HandleStatusEvent(statusEvent); err != nil {
					wk.Logger.Error("status notification failed", "applicant_id", statusEvent.ApplicantID, "error", err)
				}
			case kafka.Error:
				wk.Logger.Error("kafka error", "error", e)
			case kafka.AssignedPartitions:
				consumer.Assign(e.Partitions)
			case kafka.RevokedPartitions:
				consumer.Unassign()
			}
		}
	}
}

// HandleStatusEvent sends the emails a single status event calls for.
func (wk *Worker) HandleStatusEvent(event onboarding.StatusEvent) error {
	switch {
	case event.Escalated:
		return wk.notifyReviewers(event, "escalated")

	case event.From == event.To:
		return nil

	case event.To == models.ApplicantPendingAdminReview:
		return wk.notifyReviewers(event, "")

	case event.To == models.ApplicantActivated:
		return wk.Mailer.Send(event.Email, map[string]any{
			"BusinessName": event.BusinessName,
			"BaseURL":      wk.BaseURL,
		}, "applicant-activated.tmpl")

	case event.To == models.ApplicantRejected:
		return wk.Mailer.Send(event.Email, map[string]any{
			"BusinessName": event.BusinessName,
			"Reason":       event.Reason,
		}, "applicant-rejected.tmpl")
	}

	return nil
}

func (wk *Worker) notifyReviewers(event onboarding.StatusEvent, urgency string) error {
	if wk.ReviewEmail == "" {
		wk.Logger.Warn("no review email configured", "applicant_id", event.ApplicantID)
		return nil
	}

	return wk.Mailer.Send(wk.ReviewEmail, map[string]any{
		"ApplicantID":  event.ApplicantID,
		"BusinessName": event.BusinessName,
		"BaseURL":      wk.BaseURL,
		"Urgency":      urgency,
	}, "admin-review.tmpl")
}
