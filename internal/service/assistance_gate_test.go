package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

func TestNextAssistanceLevel(t *testing.T) {
	cases := []struct {
		name     string
		progress models.StudentQuizProgress
		want     GateDecision
	}{
		{
			name:     "below ceiling",
			progress: models.StudentQuizProgress{FailedAttempts: 3, MaxAttempts: 4},
			want:     GateDecision{Level: models.AssistanceNone},
		},
		{
			name:     "ceiling reached",
			progress: models.StudentQuizProgress{FailedAttempts: 4, MaxAttempts: 4},
			want:     GateDecision{Level: models.AssistanceRequiredLevel1},
		},
		{
			name:     "zero max falls back to default",
			progress: models.StudentQuizProgress{FailedAttempts: 4},
			want:     GateDecision{Level: models.AssistanceRequiredLevel1},
		},
		{
			name:     "level one done",
			progress: models.StudentQuizProgress{FailedAttempts: 4, MaxAttempts: 4, Level1Completed: true},
			want:     GateDecision{Level: models.AssistanceRequiredLevel2},
		},
		{
			name:     "level two done",
			progress: models.StudentQuizProgress{FailedAttempts: 5, MaxAttempts: 4, Level1Completed: true, Level2Completed: true},
			want:     GateDecision{Level: models.AssistanceRequiredLevel3},
		},
		{
			name:     "ladder finished",
			progress: models.StudentQuizProgress{FailedAttempts: 4, MaxAttempts: 4, Level1Completed: true, Level2Completed: true, Level3Completed: true},
			want:     GateDecision{Level: models.AssistanceNone, MustRetake: true},
		},
		{
			name:     "level two without level one still asks for level one",
			progress: models.StudentQuizProgress{FailedAttempts: 4, MaxAttempts: 4, Level2Completed: true},
			want:     GateDecision{Level: models.AssistanceRequiredLevel1},
		},
		{
			name:     "retake routes to main quiz",
			progress: models.StudentQuizProgress{FailedAttempts: 6, MaxAttempts: 4, MustRetakeMainQuiz: true},
			want:     GateDecision{Level: models.AssistanceNone, MustRetake: true},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NextAssistanceLevel(tc.progress))
			require.Equal(t, tc.want, NextAssistanceLevel(tc.progress))
		})
	}
}

func TestApplyGateOnlyRaisesRetake(t *testing.T) {
	progress := models.StudentQuizProgress{FailedAttempts: 4, MaxAttempts: 4, Level1Completed: true, Level2Completed: true, Level3Completed: true}
	decision := applyGate(&progress)
	require.True(t, decision.MustRetake)
	require.True(t, progress.MustRetakeMainQuiz)
	require.Equal(t, models.AssistanceNone, progress.AssistanceRequired)

	progress = models.StudentQuizProgress{FailedAttempts: 1, MaxAttempts: 4, AssistanceRequired: models.AssistanceRequiredLevel2}
	applyGate(&progress)
	require.False(t, progress.MustRetakeMainQuiz)
	require.Equal(t, models.AssistanceNone, progress.AssistanceRequired)
}
