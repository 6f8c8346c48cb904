package models

import (
	"time"

	"gorm.io/datatypes"
)

// Actions written to the activity log by the progress services.
const (
	ActivityLevel2Graded  = "assistance.level2.graded"
	ActivityLevel3Granted = "assistance.level3.granted"
	ActivityLevel3Revoked = "assistance.level3.revoked"
	ActivityProgressReset = "progress.reset"
)

// ActivityLog captures teacher actions that mutate student progress.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// AllModels lists every table managed by the service, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Student{},
		&Class{},
		&ClassStudent{},
		&Quiz{},
		&QuizSubmission{},
		&StudentQuizProgress{},
		&AssistanceLevel1{},
		&AssistanceLevel1Question{},
		&AssistanceLevel1Submission{},
		&AssistanceLevel2{},
		&AssistanceLevel2Question{},
		&AssistanceLevel2Submission{},
		&AssistanceLevel2Answer{},
		&AssistanceLevel3{},
		&ActivityLog{},
	}
}
