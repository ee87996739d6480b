package service

import (
	"context"
	"dynamic_quiz_backend/internal/config"
	"dynamic_quiz_backend/internal/event"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/internal/repository"
	"dynamic_quiz_backend/internal/util"
	"dynamic_quiz_backend/pkg/logger"
	"dynamic_quiz_backend/pkg/monitoring"
	"dynamic_quiz_backend/pkg/tracing"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxSessionListLimit = 100

// EventPublisher 会话生命周期事件的发布方，发布失败只记日志
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

type QuizSessionService struct {
	Store     repository.SessionStore
	Source    QuestionSource
	Publisher EventPublisher

	mu  sync.RWMutex
	cfg config.QuizConfig
	now func() time.Time
}

func NewQuizSessionService(store repository.SessionStore, source QuestionSource, publisher EventPublisher, cfg config.QuizConfig) *QuizSessionService {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	if err := cfg.Validate(); err != nil {
		logger.Log.Warn("Invalid quiz config, using defaults", zap.Error(err))
		cfg = config.DefaultQuizConfig()
	}
	return &QuizSessionService{
		Store:     store,
		Source:    source,
		Publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

type CreateSessionInput struct {
	Topics                  []string `json:"topics"`
	DifficultyLevels        []string `json:"difficultyLevels"`
	QuestionsPerCombination int      `json:"questionsPerCombination"`
	LearnerID               string   `json:"learnerId"`
}

type SubmitAnswerInput struct {
	SessionID  string `json:"-"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	TimeTaken  int    `json:"timeTaken"` // 秒
}

type SubmitResult struct {
	IsCorrect         bool     `json:"isCorrect"`
	CorrectAnswer     string   `json:"correctAnswer"`
	Explanation       string   `json:"explanation,omitempty"`
	SessionComplete   bool     `json:"sessionComplete"`
	SessionScore      *float64 `json:"sessionScore,omitempty"`
	QuestionsAnswered int      `json:"questionsAnswered"`
	TotalQuestions    int      `json:"totalQuestions"`
}

// SessionQuestion 会话详情中的题目，答案只在已作答或会话完成后展示
type SessionQuestion struct {
	model.QuestionView
	Answered      bool   `json:"answered"`
	IsCorrect     *bool  `json:"isCorrect,omitempty"`
	CorrectAnswer string `json:"correctAnswer,omitempty"`
	Explanation   string `json:"explanation,omitempty"`
}

type SessionDetail struct {
	Session   *model.QuizSession   `json:"session"`
	Questions []SessionQuestion    `json:"questions"`
	Responses []model.QuizResponse `json:"responses"`
	Accuracy  float64              `json:"accuracy"`
}

// QuizConfig 当前生效的引擎参数
func (s *QuizSessionService) QuizConfig() config.QuizConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateQuizConfig 配置热更新回调，非法配置会被忽略
func (s *QuizSessionService) UpdateQuizConfig(cfg config.QuizConfig) error {
	if err := cfg.Validate(); err != nil {
		logger.Log.Warn("Ignoring invalid quiz config", zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	logger.Log.Info("Quiz config updated",
		zap.Int("maxQuestionsPerCombination", cfg.MaxQuestionsPerCombination),
		zap.Float64("weakTopicThreshold", cfg.WeakTopicThreshold),
	)
	return nil
}

type generationPair struct {
	topic      string
	difficulty model.Difficulty
}

type pairResult struct {
	questions []model.QuizQuestion
	err       error
}

func (s *QuizSessionService) CreateSession(ctx context.Context, in CreateSessionInput) (session *model.QuizSession, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizSessionService.CreateSession")
	defer func() { endSpan(span, err) }()

	cfg := s.QuizConfig()

	topics, err := normalizeTopics(in.Topics)
	if err != nil {
		return nil, err
	}
	difficulties, err := normalizeDifficulties(in.DifficultyLevels)
	if err != nil {
		return nil, err
	}
	n := in.QuestionsPerCombination
	if n < 1 || n > cfg.MaxQuestionsPerCombination {
		return nil, fmt.Errorf("%w: questionsPerCombination must be within [1, %d]", util.ErrInvalidRequest, cfg.MaxQuestionsPerCombination)
	}
	span.SetAttributes(
		attribute.StringSlice("quiz.topics", topics),
		attribute.Int("quiz.questions_per_combination", n),
	)

	pairs := make([]generationPair, 0, len(topics)*len(difficulties))
	for _, t := range topics {
		for _, d := range difficulties {
			pairs = append(pairs, generationPair{topic: t, difficulty: d})
		}
	}

	genCtx := ctx
	if cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, cfg.GenerationTimeout)
		defer cancel()
	}

	results := make([]pairResult, len(pairs))
	var g errgroup.Group
	g.SetLimit(max(cfg.GenerationConcurrency, 1))
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			results[i] = s.generatePair(genCtx, p, n)
			return nil
		})
	}
	_ = g.Wait()

	// 调用方取消时不落库
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessionID := model.GenerateUUID()
	var (
		questions []model.QuizQuestion
		failed    int
	)
	for i, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		for _, q := range r.questions {
			q.ID = model.GenerateUUID()
			q.SessionID = sessionID
			q.Topic = pairs[i].topic
			q.Difficulty = pairs[i].difficulty
			q.Position = len(questions)
			if q.Type != model.QuestionMultipleChoice {
				q.Options = nil
			}
			questions = append(questions, q)
		}
	}

	if len(questions) == 0 {
		if failed > 0 {
			return nil, fmt.Errorf("%w: %d of %d generation calls failed", util.ErrSourceUnavailable, failed, len(pairs))
		}
		return nil, util.ErrGenerationUnavailable
	}

	session = &model.QuizSession{
		UUIDBase:         model.UUIDBase{ID: sessionID, CreatedAt: s.now()},
		LearnerID:        strings.TrimSpace(in.LearnerID),
		Topics:           topics,
		DifficultyLevels: difficulties,
		Questions:        questions,
		TotalQuestions:   len(questions),
		Status:           model.SessionActive,
	}
	if err := s.Store.Put(ctx, session); err != nil {
		return nil, err
	}

	monitoring.SessionsCreated.Inc()
	logger.Log.Info("Quiz session created",
		zap.String("sessionId", session.ID),
		zap.Strings("topics", topics),
		zap.Int("requested", len(pairs)*n),
		zap.Int("totalQuestions", session.TotalQuestions),
	)

	levels := make([]string, len(difficulties))
	for i, d := range difficulties {
		levels[i] = string(d)
	}
	s.publish(ctx, util.EventSessionCreated, event.SessionCreated{
		SessionID:        session.ID,
		LearnerID:        session.LearnerID,
		Topics:           topics,
		DifficultyLevels: levels,
		TotalQuestions:   session.TotalQuestions,
	})
	return session, nil
}

// generatePair 一次来源调用，返回通过结构校验且不超过 n 道的题目
func (s *QuizSessionService) generatePair(ctx context.Context, p generationPair, n int) pairResult {
	ctx, span := tracing.Tracer.Start(ctx, "QuestionSource.Generate", trace.WithAttributes(
		attribute.String("quiz.source", s.Source.Name()),
		attribute.String("quiz.topic", p.topic),
		attribute.String("quiz.difficulty", string(p.difficulty)),
	))
	defer span.End()

	start := time.Now()
	raw, err := s.Source.Generate(ctx, p.topic, p.difficulty, n)
	monitoring.GenerationDuration.WithLabelValues(s.Source.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		monitoring.GenerationFailures.WithLabelValues(s.Source.Name()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Log.Warn("Question generation failed",
			zap.String("topic", p.topic),
			zap.String("difficulty", string(p.difficulty)),
			zap.Error(err),
		)
		return pairResult{err: err}
	}

	valid := make([]model.QuizQuestion, 0, len(raw))
	for i := range raw {
		if len(valid) == n {
			break
		}
		if err := validateQuestionSchema(&raw[i]); err != nil {
			logger.Log.Warn("Dropping malformed question",
				zap.String("topic", p.topic),
				zap.String("difficulty", string(p.difficulty)),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, raw[i])
	}
	if len(valid) < n {
		logger.Log.Info("Question source returned fewer questions than requested",
			zap.String("topic", p.topic),
			zap.String("difficulty", string(p.difficulty)),
			zap.Int("requested", n),
			zap.Int("returned", len(valid)),
		)
	}
	return pairResult{questions: valid}
}

func (s *QuizSessionService) SubmitAnswer(ctx context.Context, in SubmitAnswerInput) (result *SubmitResult, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizSessionService.SubmitAnswer", trace.WithAttributes(
		attribute.String("quiz.session_id", in.SessionID),
		attribute.String("quiz.question_id", in.QuestionID),
	))
	defer func() { endSpan(span, err) }()

	session, err := s.Store.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted() {
		return nil, util.ErrSessionAlreadyComplete
	}
	question, ok := session.FindQuestion(in.QuestionID)
	if !ok {
		return nil, util.ErrQuestionNotFound
	}
	if in.TimeTaken < 0 {
		return nil, fmt.Errorf("%w: timeTaken must be non-negative", util.ErrInvalidRequest)
	}
	if strings.TrimSpace(in.Answer) == "" {
		return nil, util.ErrEmptyAnswer
	}

	isCorrect := ValidateAnswer(question, in.Answer)
	response := &model.QuizResponse{
		UUIDBase:      model.UUIDBase{ID: model.GenerateUUID()},
		SessionID:     in.SessionID,
		QuestionID:    in.QuestionID,
		LearnerAnswer: in.Answer,
		IsCorrect:     isCorrect,
		TimeTaken:     in.TimeTaken,
	}

	updated, err := s.Store.AppendResponse(ctx, in.SessionID, response, func(sess *model.QuizSession) error {
		if sess.IsCompleted() || sess.QuestionsAnswered >= sess.TotalQuestions {
			return util.ErrSessionAlreadyComplete
		}
		sess.QuestionsAnswered++
		if isCorrect {
			sess.CorrectAnswers++
		}
		sess.TimeTaken += in.TimeTaken
		if sess.QuestionsAnswered == sess.TotalQuestions {
			completedAt := s.now()
			sess.Status = model.SessionCompleted
			sess.CompletedAt = &completedAt
			sess.TotalScore = Score(sess.CorrectAnswers, sess.TotalQuestions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result = &SubmitResult{
		IsCorrect:         isCorrect,
		CorrectAnswer:     question.CorrectAnswer,
		Explanation:       question.Explanation,
		SessionComplete:   updated.IsCompleted(),
		QuestionsAnswered: updated.QuestionsAnswered,
		TotalQuestions:    updated.TotalQuestions,
	}

	monitoring.ObserveAnswer(isCorrect)
	s.publish(ctx, util.EventAnswerSubmitted, event.AnswerSubmitted{
		SessionID:         updated.ID,
		QuestionID:        in.QuestionID,
		IsCorrect:         isCorrect,
		TimeTaken:         in.TimeTaken,
		QuestionsAnswered: updated.QuestionsAnswered,
		TotalQuestions:    updated.TotalQuestions,
	})

	if result.SessionComplete {
		score := updated.TotalScore
		result.SessionScore = &score

		monitoring.SessionsCompleted.Inc()
		logger.Log.Info("Quiz session completed",
			zap.String("sessionId", updated.ID),
			zap.Int("correct", updated.CorrectAnswers),
			zap.Int("total", updated.TotalQuestions),
			zap.Float64("score", score),
		)
		s.publish(ctx, util.EventSessionCompleted, event.SessionCompleted{
			SessionID:      updated.ID,
			LearnerID:      updated.LearnerID,
			CorrectAnswers: updated.CorrectAnswers,
			TotalQuestions: updated.TotalQuestions,
			TotalScore:     score,
			TimeTaken:      updated.TimeTaken,
			CompletedAt:    *updated.CompletedAt,
		})
	}
	return result, nil
}

// GetSessionAnalytics 每次都从作答记录重新计算
func (s *QuizSessionService) GetSessionAnalytics(ctx context.Context, sessionID string) (snapshot *model.AnalyticsSnapshot, err error) {
	ctx, span := tracing.Tracer.Start(ctx, "QuizSessionService.GetSessionAnalytics", trace.WithAttributes(
		attribute.String("quiz.session_id", sessionID),
	))
	defer func() { endSpan(span, err) }()

	session, responses, err := s.Store.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	aggregator := NewAnalyticsAggregator(s.QuizConfig().WeakTopicThreshold)
	return aggregator.Aggregate(session, responses), nil
}

func (s *QuizSessionService) GetSession(ctx context.Context, sessionID string) (*SessionDetail, error) {
	session, responses, err := s.Store.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[string]*model.QuizResponse, len(responses))
	for i := range responses {
		byQuestion[responses[i].QuestionID] = &responses[i]
	}

	questions := make([]SessionQuestion, 0, len(session.Questions))
	for _, q := range session.Questions {
		sq := SessionQuestion{QuestionView: q.View()}
		r, answered := byQuestion[q.ID]
		if answered {
			sq.Answered = true
			correct := r.IsCorrect
			sq.IsCorrect = &correct
		}
		if answered || session.IsCompleted() {
			sq.CorrectAnswer = q.CorrectAnswer
			sq.Explanation = q.Explanation
		}
		questions = append(questions, sq)
	}

	return &SessionDetail{
		Session:   session,
		Questions: questions,
		Responses: responses,
		Accuracy:  Score(session.CorrectAnswers, session.QuestionsAnswered),
	}, nil
}

func (s *QuizSessionService) ListSessions(ctx context.Context, learnerID string, limit int) ([]model.QuizSession, error) {
	if limit <= 0 {
		limit = util.DefaultSessionListLimit
	}
	if limit > maxSessionListLimit {
		limit = maxSessionListLimit
	}
	return s.Store.ListSessions(ctx, strings.TrimSpace(learnerID), limit)
}

func (s *QuizSessionService) publish(ctx context.Context, eventType string, payload interface{}) {
	if err := s.Publisher.Publish(ctx, eventType, payload); err != nil {
		logger.Log.Error("Failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if _, known := util.KindOf(err); !known || errors.Is(err, util.ErrStoreUnavailable) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// normalizeTopics 去除首尾空白，按首次出现顺序去重
func normalizeTopics(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: topics must not be empty", util.ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(raw))
	topics := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("%w: topics must not contain empty entries", util.ErrInvalidRequest)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		topics = append(topics, t)
	}
	return topics, nil
}

func normalizeDifficulties(raw []string) ([]model.Difficulty, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: difficultyLevels must not be empty", util.ErrInvalidRequest)
	}
	seen := make(map[model.Difficulty]bool, len(raw))
	levels := make([]model.Difficulty, 0, len(raw))
	for _, r := range raw {
		d, ok := model.ParseDifficulty(r)
		if !ok {
			return nil, fmt.Errorf("%w: unknown difficulty %q", util.ErrInvalidRequest, r)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		levels = append(levels, d)
	}
	return levels, nil
}
