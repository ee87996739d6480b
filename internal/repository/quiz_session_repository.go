package repository

import (
	"context"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/internal/util"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuizSessionRepository 基于 gorm 的持久化会话存储
type QuizSessionRepository struct {
	DB *gorm.DB
}

func NewQuizSessionRepository(db *gorm.DB) *QuizSessionRepository {
	return &QuizSessionRepository{DB: db}
}

var _ SessionStore = (*QuizSessionRepository)(nil)

func storeError(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrSessionNotFound
	}
	return fmt.Errorf("%w: %s: %v", util.ErrStoreUnavailable, op, err)
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *QuizSessionRepository) Put(ctx context.Context, session *model.QuizSession) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(session).Error
	})
	if err != nil {
		return storeError("put session", err)
	}
	return nil
}

func (r *QuizSessionRepository) Get(ctx context.Context, sessionID string) (*model.QuizSession, error) {
	var session model.QuizSession
	err := r.DB.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		First(&session, "id = ?", sessionID).Error
	if err != nil {
		return nil, storeError("get session", err)
	}
	return &session, nil
}

func (r *QuizSessionRepository) AppendResponse(ctx context.Context, sessionID string, response *model.QuizResponse, apply ApplyFunc) (*model.QuizSession, error) {
	var session model.QuizSession

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住会话行，同一会话的提交在此串行
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&session, "id = ?", sessionID).Error; err != nil {
			return err
		}
		if session.IsCompleted() {
			return util.ErrSessionAlreadyComplete
		}
		if err := tx.Scopes(orderedQuestions).
			Where("session_id = ?", sessionID).
			Find(&session.Questions).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.QuizResponse{}).
			Where("session_id = ? AND question_id = ?", sessionID, response.QuestionID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return util.ErrDuplicateAnswer
		}

		if err := apply(&session); err != nil {
			return err
		}

		response.SessionID = sessionID
		if err := tx.Create(response).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return util.ErrDuplicateAnswer
			}
			return err
		}

		return tx.Model(&model.QuizSession{}).
			Where("id = ?", sessionID).
			Updates(map[string]interface{}{
				"questions_answered": session.QuestionsAnswered,
				"correct_answers":    session.CorrectAnswers,
				"total_score":        session.TotalScore,
				"time_taken":         session.TimeTaken,
				"status":             session.Status,
				"completed_at":       session.CompletedAt,
			}).Error
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, storeError("append response", err)
	}
	return &session, nil
}

func isDomainError(err error) bool {
	_, known := util.KindOf(err)
	return known && !errors.Is(err, util.ErrStoreUnavailable)
}

func (r *QuizSessionRepository) ListResponses(ctx context.Context, sessionID string) ([]model.QuizResponse, error) {
	var responses []model.QuizResponse
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&responses).Error
	if err != nil {
		return nil, storeError("list responses", err)
	}
	return responses, nil
}

func (r *QuizSessionRepository) Snapshot(ctx context.Context, sessionID string) (*model.QuizSession, []model.QuizResponse, error) {
	var (
		session   model.QuizSession
		responses []model.QuizResponse
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Questions", orderedQuestions).
			First(&session, "id = ?", sessionID).Error; err != nil {
			return err
		}
		return tx.Where("session_id = ?", sessionID).
			Order("created_at ASC, id ASC").
			Find(&responses).Error
	})
	if err != nil {
		return nil, nil, storeError("snapshot session", err)
	}
	return &session, responses, nil
}

func (r *QuizSessionRepository) ListSessions(ctx context.Context, learnerID string, limit int) ([]model.QuizSession, error) {
	query := r.DB.WithContext(ctx).Model(&model.QuizSession{})
	if learnerID != "" {
		query = query.Where("learner_id = ?", learnerID)
	}
	if limit <= 0 {
		limit = util.DefaultSessionListLimit
	}

	var sessions []model.QuizSession
	if err := query.Order("created_at DESC").Limit(limit).Find(&sessions).Error; err != nil {
		return nil, storeError("list sessions", err)
	}
	return sessions, nil
}
