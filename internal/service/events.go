package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// Reasons attached to progress events.
const (
	ReasonAttemptGraded   = "attempt.graded"
	ReasonLevel1Submitted = "level1.submitted"
	ReasonLevel2Submitted = "level2.submitted"
	ReasonLevel2Graded    = "level2.graded"
	ReasonLevel3Granted   = "level3.granted"
	ReasonProgressReset   = "progress.reset"
)

// ProgressEvent is emitted after a progress transition commits.
type ProgressEvent struct {
	Reason             string                 `json:"reason"`
	StudentID          uint                   `json:"student_id"`
	QuizID             uint                   `json:"quiz_id"`
	PreviousLevel      models.AssistanceLevel `json:"previous_level"`
	AssistanceRequired models.AssistanceLevel `json:"assistance_required"`
	MustRetakeMainQuiz bool                   `json:"must_retake_main_quiz"`
	CurrentAttempt     int                    `json:"current_attempt"`
	FailedAttempts     int                    `json:"failed_attempts"`
	Cycle              uint                   `json:"cycle"`
	OccurredAt         time.Time              `json:"occurred_at"`
}

// EventPublisher delivers progress events to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event ProgressEvent) error
}

type natsPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher publishes events as JSON on the given subject. A nil
// connection yields a publisher that drops events.
func NewNATSPublisher(conn *nats.Conn, subject string) EventPublisher {
	if conn == nil || subject == "" {
		return noopPublisher{}
	}
	return &natsPublisher{conn: conn, subject: subject}
}

func (p *natsPublisher) Publish(_ context.Context, event ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, payload)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, ProgressEvent) error { return nil }
