package service

import (
	"context"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/pkg/logger"

	"go.uber.org/zap"
)

// FallbackQuestionSource 主来源出错或没有题目时改用备用来源。
// 上下文取消时直接返回，不再尝试备用来源
type FallbackQuestionSource struct {
	Primary   QuestionSource
	Secondary QuestionSource
}

func NewFallbackQuestionSource(primary, secondary QuestionSource) *FallbackQuestionSource {
	return &FallbackQuestionSource{Primary: primary, Secondary: secondary}
}

func (s *FallbackQuestionSource) Name() string {
	return s.Primary.Name()
}

func (s *FallbackQuestionSource) Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.QuizQuestion, error) {
	questions, err := s.Primary.Generate(ctx, topic, difficulty, count)
	if err == nil && len(questions) > 0 {
		return questions, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	logger.Log.Warn("Using fallback questions",
		zap.String("primary", s.Primary.Name()),
		zap.String("secondary", s.Secondary.Name()),
		zap.String("topic", topic),
		zap.String("difficulty", string(difficulty)),
		zap.Error(err),
	)
	return s.Secondary.Generate(ctx, topic, difficulty, count)
}
