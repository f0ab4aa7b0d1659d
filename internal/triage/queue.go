package triage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sparshcare/wellness-platform/pkg/logging"
)

type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type queuePayload struct {
	ID    string       `json:"id"`
	Cycle CycleRequest `json:"cycle"`
}

// Publisher enqueues triage cycles for background processing. The crisis
// path never goes through here: the chat handler runs the keyword check
// synchronously before publishing.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher wraps a queue client.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("triage: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Publish enqueues one triage cycle.
func (p *Publisher) Publish(ctx context.Context, req CycleRequest) error {
	payload := queuePayload{ID: uuid.NewString(), Cycle: req}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("triage: encode cycle payload: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("triage: enqueue cycle: %w", err)
	}
	p.logger.Debug("triage cycle enqueued",
		"job_id", payload.ID,
		"student_id", req.StudentID,
		"session_id", req.SessionID,
	)
	return nil
}
