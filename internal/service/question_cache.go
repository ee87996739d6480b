package service

import (
	"context"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// BatchCache 缓存某个 (来源, 主题, 难度, 数量) 的生成结果
type BatchCache interface {
	Get(ctx context.Context, key string) ([]model.QuizQuestion, bool, error)
	Set(ctx context.Context, key string, questions []model.QuizQuestion, ttl time.Duration) error
}

type RedisBatchCache struct {
	Client *redis.Client
}

func NewRedisBatchCache(rdb *redis.Client) *RedisBatchCache {
	return &RedisBatchCache{Client: rdb}
}

func (c *RedisBatchCache) Get(ctx context.Context, key string) ([]model.QuizQuestion, bool, error) {
	data, err := c.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var questions []model.QuizQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false, err
	}
	return questions, true, nil
}

func (c *RedisBatchCache) Set(ctx context.Context, key string, questions []model.QuizQuestion, ttl time.Duration) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key, data, ttl).Err()
}

// CachedQuestionSource 生成结果的读穿缓存。缓存故障只记日志，不影响出题。
// 会话统计永远不走缓存
type CachedQuestionSource struct {
	Next  QuestionSource
	Cache BatchCache
	TTL   time.Duration
}

func NewCachedQuestionSource(next QuestionSource, cache BatchCache, ttl time.Duration) *CachedQuestionSource {
	return &CachedQuestionSource{Next: next, Cache: cache, TTL: ttl}
}

func (s *CachedQuestionSource) Name() string {
	return s.Next.Name()
}

func batchCacheKey(source, topic string, difficulty model.Difficulty, count int) string {
	return fmt.Sprintf("quiz:questions:%s:%s:%s:%d", source, strings.ToLower(strings.TrimSpace(topic)), difficulty, count)
}

func (s *CachedQuestionSource) Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.QuizQuestion, error) {
	key := batchCacheKey(s.Next.Name(), topic, difficulty, count)

	cached, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		logger.Log.Warn("Question cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	questions, err := s.Next.Generate(ctx, topic, difficulty, count)
	if err != nil {
		return nil, err
	}
	if len(questions) > 0 {
		if err := s.Cache.Set(ctx, key, questions, s.TTL); err != nil {
			logger.Log.Warn("Question cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return questions, nil
}
