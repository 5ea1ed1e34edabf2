package rabbitmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const jobContentType = "application/json"

// JobMessage is the body published for every submitted generation job
type JobMessage struct {
	JobID string `json:"job_id"`
}

// jobPublishing wraps a job id in a persistent message keyed by that id
func jobPublishing(jobID string, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal job message: %w", err)
	}
	return amqp.Publishing{
		ContentType:  jobContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    jobID,
		Timestamp:    now,
		Body:         body,
	}, nil
}

// DecodeJobMessage parses a delivery body and checks that it names a job id
func DecodeJobMessage(body []byte) (JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("failed to parse message JSON: %w", err)
	}
	if _, err := uuid.Parse(msg.JobID); err != nil {
		return msg, fmt.Errorf("invalid job_id %q: %w", msg.JobID, err)
	}
	return msg, nil
}
