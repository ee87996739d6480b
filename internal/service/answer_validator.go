package service

import (
	"dynamic_quiz_backend/internal/model"
	"strings"
)

// ValidateAnswer 判断作答是否正确，输入不合法时按错误处理而不是返回 error。
// 填空与简答只做去空白、忽略大小写的精确匹配，同义表达会判错
func ValidateAnswer(q *model.QuizQuestion, rawAnswer string) bool {
	answer := strings.TrimSpace(rawAnswer)
	if q == nil || answer == "" {
		return false
	}

	switch q.Type {
	case model.QuestionMultipleChoice:
		if answer != q.CorrectAnswer {
			return false
		}
		for _, opt := range q.Options {
			if opt == answer {
				return true
			}
		}
		return false
	case model.QuestionTrueFalse:
		given, ok := normalizeBool(answer)
		if !ok {
			return false
		}
		expected, ok := normalizeBool(q.CorrectAnswer)
		return ok && given == expected
	case model.QuestionFillBlank, model.QuestionShortAnswer:
		return strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer))
	}
	return false
}

func normalizeBool(s string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "true" || v == "false" {
		return v, true
	}
	return "", false
}
