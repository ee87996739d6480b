package service

import (
	"context"
	"dynamic_quiz_backend/internal/model"
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionSource 题目来源。题目不足时返回较短的结果而不是报错，
// 暂时不可用时返回包装了 util.ErrSourceUnavailable 的错误
type QuestionSource interface {
	Name() string
	Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.QuizQuestion, error)
}

// validateQuestionSchema 题目进入会话前的结构校验
func validateQuestionSchema(q *model.QuizQuestion) error {
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("empty prompt")
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		return fmt.Errorf("empty correct answer")
	}

	switch q.Type {
	case model.QuestionMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("multiple choice needs at least 2 options, got %d", len(q.Options))
		}
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				return nil
			}
		}
		return fmt.Errorf("correct answer %q is not among the options", q.CorrectAnswer)
	case model.QuestionTrueFalse:
		if _, ok := normalizeBool(q.CorrectAnswer); !ok {
			return fmt.Errorf("true/false answer must be true or false, got %q", q.CorrectAnswer)
		}
	}
	return nil
}

var difficultyGuidance = map[model.Difficulty]string{
	model.DifficultyEasy:   "Create basic, fundamental questions that test basic understanding and recall.",
	model.DifficultyMedium: "Create intermediate questions that test application and comprehension.",
	model.DifficultyHard:   "Create advanced questions that test analysis, synthesis, and evaluation.",
}

const questionSystemPrompt = "You are an expert educator creating high-quality quiz questions. Always respond with valid JSON."

func buildQuestionPrompt(topic string, difficulty model.Difficulty, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d quiz questions about %q at %s difficulty level.\n\n", count, topic, difficulty)
	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- %s\n", difficultyGuidance[difficulty])
	b.WriteString("- Include a mix of question types: multiple choice, true/false, fill-in-the-blank, and short answer\n")
	b.WriteString("- Each question should have clear, unambiguous answers\n")
	b.WriteString("- Provide detailed explanations for correct answers\n\n")
	b.WriteString("For each question, provide:\n")
	b.WriteString("1. question_type: \"multiple_choice\", \"true_false\", \"fill_blank\", or \"short_answer\"\n")
	b.WriteString("2. question_text: The actual question\n")
	b.WriteString("3. options: Array of options (only for multiple choice)\n")
	b.WriteString("4. correct_answer: The correct answer\n")
	b.WriteString("5. explanation: Why this answer is correct\n\n")
	b.WriteString("Return the response as a JSON array of question objects.")
	return b.String()
}

type generatedQuestion struct {
	QuestionType  string   `json:"question_type"`
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// stripCodeFence 去掉模型返回中可能包裹的 markdown 代码块
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}

// parseGeneratedQuestions 解析模型输出的 JSON 数组，题目字段只做格式整理，
// 结构校验统一在会话创建时进行
func parseGeneratedQuestions(content string, topic string, difficulty model.Difficulty) ([]model.QuizQuestion, error) {
	var items []generatedQuestion
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &items); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}

	questions := make([]model.QuizQuestion, 0, len(items))
	for _, it := range items {
		q := model.QuizQuestion{
			Topic:         topic,
			Difficulty:    difficulty,
			Type:          model.QuestionType(strings.ToLower(strings.TrimSpace(it.QuestionType))),
			Prompt:        strings.TrimSpace(it.QuestionText),
			CorrectAnswer: strings.TrimSpace(it.CorrectAnswer),
			Explanation:   strings.TrimSpace(it.Explanation),
		}
		if q.Type == model.QuestionMultipleChoice {
			q.Options = it.Options
		}
		questions = append(questions, q)
	}
	return questions, nil
}
