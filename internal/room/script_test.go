package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogniview/internal/model"
)

func testInterview() *model.Interview {
	return &model.Interview{
		ID:          "iv-1",
		CompanyName: "Acme",
		JobRole:     "Backend Engineer",
		Questions: []model.Question{
			{ID: "q1", Text: "Tell me about yourself.", Variants: []string{"Introduce yourself."}},
			{ID: "q2", Text: "Describe a hard bug you fixed."},
			{ID: "q3", Text: "Why this company?"},
		},
		Parameters: []model.EvaluationParameter{
			{Name: "Communication", Weight: 40},
			{Name: "Technical", Weight: 60},
		},
	}
}

func TestBuildScriptFillsEverySlot(t *testing.T) {
	s, err := BuildScript(testInterview(), "Jane")
	require.NoError(t, err)

	assert.NotContains(t, s.SystemInstruction, "{{")
	assert.Contains(t, s.SystemInstruction, "Backend Engineer")
	assert.Contains(t, s.SystemInstruction, "Acme")
	assert.Contains(t, s.SystemInstruction, "Jane")
	assert.Contains(t, s.SystemInstruction, "3 questions")
	assert.Contains(t, s.SystemInstruction, "1. Tell me about yourself.")
	assert.Contains(t, s.SystemInstruction, "3. Why this company?")
	assert.Contains(t, s.SystemInstruction, "`end_interview`")
	assert.Contains(t, s.SystemInstruction, s.FirstMessage)
	assert.Contains(t, s.SystemInstruction, s.EndMessage)
	assert.NotContains(t, s.SystemInstruction, "Introduce yourself.")

	assert.Equal(t, "end_interview", s.EndCallFunction)
	assert.Equal(t, "Zephyr", s.Voice)
	assert.Equal(t, 3, s.QuestionCount)
	assert.Contains(t, s.FirstMessage, "Jane")
}

func TestBuildScriptRejectsEmptyInterview(t *testing.T) {
	_, err := BuildScript(&model.Interview{}, "Jane")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
