package service

import (
	"dynamic_quiz_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAnswer_MultipleChoice(t *testing.T) {
	q := &model.QuizQuestion{
		Type:          model.QuestionMultipleChoice,
		Options:       []string{"A", "B", "C"},
		CorrectAnswer: "B",
	}
	assert.True(t, ValidateAnswer(q, "B"))
	assert.True(t, ValidateAnswer(q, "  B "))
	assert.False(t, ValidateAnswer(q, "A"))
	assert.False(t, ValidateAnswer(q, "D"))
	assert.False(t, ValidateAnswer(q, "b"))

	// 正确答案不在选项中时任何作答都判错
	broken := &model.QuizQuestion{
		Type:          model.QuestionMultipleChoice,
		Options:       []string{"A", "C"},
		CorrectAnswer: "B",
	}
	assert.False(t, ValidateAnswer(broken, "B"))
}

func TestValidateAnswer_TrueFalse(t *testing.T) {
	q := &model.QuizQuestion{Type: model.QuestionTrueFalse, CorrectAnswer: "False"}
	assert.True(t, ValidateAnswer(q, "false"))
	assert.True(t, ValidateAnswer(q, " FALSE "))
	assert.False(t, ValidateAnswer(q, "true"))
	assert.False(t, ValidateAnswer(q, "no"))
	assert.False(t, ValidateAnswer(q, "f"))
}

func TestValidateAnswer_FreeText(t *testing.T) {
	for _, typ := range []model.QuestionType{model.QuestionFillBlank, model.QuestionShortAnswer} {
		q := &model.QuizQuestion{Type: typ, CorrectAnswer: "Print"}
		assert.True(t, ValidateAnswer(q, "print"), typ)
		assert.True(t, ValidateAnswer(q, "  PRINT\t"), typ)
		assert.False(t, ValidateAnswer(q, "print()"), typ)
		assert.False(t, ValidateAnswer(q, "output"), typ)
	}
}

func TestValidateAnswer_Malformed(t *testing.T) {
	assert.False(t, ValidateAnswer(nil, "x"))
	assert.False(t, ValidateAnswer(&model.QuizQuestion{Type: "essay", CorrectAnswer: "x"}, "x"))
	assert.False(t, ValidateAnswer(&model.QuizQuestion{Type: model.QuestionFillBlank, CorrectAnswer: ""}, "   "))
}
