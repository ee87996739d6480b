package model

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// QuizSession 一次动态测验。计数字段只由提交答案时的原子更新维护
type QuizSession struct {
	UUIDBase
	LearnerID         string         `gorm:"index;size:64" json:"learnerId,omitempty"`
	Topics            []string       `gorm:"type:json;serializer:json;not null" json:"topics"`
	DifficultyLevels  []Difficulty   `gorm:"type:json;serializer:json;not null" json:"difficultyLevels"`
	Questions         []QuizQuestion `gorm:"foreignKey:SessionID" json:"-"`
	TotalQuestions    int            `gorm:"not null" json:"totalQuestions"`
	QuestionsAnswered int            `gorm:"default:0" json:"questionsAnswered"`
	CorrectAnswers    int            `gorm:"default:0" json:"correctAnswers"`
	TotalScore        float64        `gorm:"default:0" json:"totalScore"`
	TimeTaken         int            `gorm:"default:0" json:"timeTaken"` // 秒
	Status            SessionStatus  `gorm:"size:20;index;default:'active'" json:"status"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

func (QuizSession) TableName() string {
	return "quiz_sessions"
}

func (s *QuizSession) IsCompleted() bool {
	return s.Status == SessionCompleted
}

func (s *QuizSession) FindQuestion(questionID string) (*QuizQuestion, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == questionID {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// Clone 深拷贝，内存存储用它隔离调用方的修改
func (s *QuizSession) Clone() *QuizSession {
	c := *s
	c.Topics = append([]string(nil), s.Topics...)
	c.DifficultyLevels = append([]Difficulty(nil), s.DifficultyLevels...)
	c.Questions = make([]QuizQuestion, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = append([]string(nil), q.Options...)
		c.Questions[i] = q
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// QuizResponse 某题的唯一作答记录，写入后不可修改
type QuizResponse struct {
	UUIDBase
	SessionID     string `gorm:"uniqueIndex:uk_session_question,priority:1;type:varchar(36);not null" json:"sessionId"`
	QuestionID    string `gorm:"uniqueIndex:uk_session_question,priority:2;type:varchar(36);not null" json:"questionId"`
	LearnerAnswer string `gorm:"type:text;not null" json:"learnerAnswer"`
	IsCorrect     bool   `gorm:"not null" json:"isCorrect"`
	TimeTaken     int    `gorm:"default:0" json:"timeTaken"` // 秒
}

func (QuizResponse) TableName() string {
	return "quiz_responses"
}
