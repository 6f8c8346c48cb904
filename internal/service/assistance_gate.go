package service

import "github.com/noah-isme/gema-quiz-api/internal/models"

// GateDecision is the outcome of the assistance gate. MustRetake is a
// routing hint: the student goes back to the main quiz as a retake.
type GateDecision struct {
	Level      models.AssistanceLevel
	MustRetake bool
}

// NextAssistanceLevel derives the level a student must complete next from
// the current flags only. Levels are strictly ordered 1, 2, 3.
func NextAssistanceLevel(progress models.StudentQuizProgress) GateDecision {
	maxAttempts := progress.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}

	switch {
	case progress.MustRetakeMainQuiz:
		return GateDecision{Level: models.AssistanceNone, MustRetake: true}
	case progress.FailedAttempts < maxAttempts:
		return GateDecision{Level: models.AssistanceNone}
	case !progress.Level1Completed:
		return GateDecision{Level: models.AssistanceRequiredLevel1}
	case !progress.Level2Completed:
		return GateDecision{Level: models.AssistanceRequiredLevel2}
	case !progress.Level3Completed:
		return GateDecision{Level: models.AssistanceRequiredLevel3}
	default:
		return GateDecision{Level: models.AssistanceNone, MustRetake: true}
	}
}

// applyGate stores the gate decision on the record. The retake flag is only
// ever raised here; clearing it belongs to the attempt evaluator and resets.
func applyGate(progress *models.StudentQuizProgress) GateDecision {
	decision := NextAssistanceLevel(*progress)
	progress.AssistanceRequired = decision.Level
	if decision.MustRetake {
		progress.MustRetakeMainQuiz = true
	}
	return decision
}
