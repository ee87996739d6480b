package model

import "strings"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty 大小写不敏感，未知值返回 false
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return "", false
}

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionFillBlank, QuestionShortAnswer:
		return true
	}
	return false
}

// QuizQuestion 会话创建时快照下来的题目，之后不可变
type QuizQuestion struct {
	ID            string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	SessionID     string       `gorm:"index:idx_session_position,priority:1;type:varchar(36);not null" json:"sessionId"`
	Position      int          `gorm:"index:idx_session_position,priority:2;not null" json:"position"`
	Topic         string       `gorm:"size:100;not null" json:"topic"`
	Difficulty    Difficulty   `gorm:"size:20;not null" json:"difficulty"`
	Type          QuestionType `gorm:"size:20;not null" json:"type"`
	Prompt        string       `gorm:"type:text;not null" json:"prompt"`
	Options       []string     `gorm:"type:json;serializer:json" json:"options,omitempty"`
	CorrectAnswer string       `gorm:"type:text;not null" json:"correctAnswer"`
	Explanation   string       `gorm:"type:text" json:"explanation,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_session_questions"
}

// QuestionView 对答题者展示的题目，不含答案与解析
type QuestionView struct {
	ID         string       `json:"id"`
	Position   int          `json:"position"`
	Topic      string       `json:"topic"`
	Difficulty Difficulty   `json:"difficulty"`
	Type       QuestionType `json:"type"`
	Prompt     string       `json:"prompt"`
	Options    []string     `json:"options,omitempty"`
}

func (q QuizQuestion) View() QuestionView {
	return QuestionView{
		ID:         q.ID,
		Position:   q.Position,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
		Type:       q.Type,
		Prompt:     q.Prompt,
		Options:    q.Options,
	}
}
