package service

import (
	"bytes"
	"context"
	"dynamic_quiz_backend/internal/config"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/internal/util"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AIQuestionSource 通过 OpenAI 兼容的 chat/completions 接口生成题目
type AIQuestionSource struct {
	config config.AIConfig
	client *http.Client
}

func NewAIQuestionSource(cfg config.AIConfig) *AIQuestionSource {
	return &AIQuestionSource{
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type aiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type aiChatRequest struct {
	Model       string          `json:"model"`
	Messages    []aiChatMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type aiChatResponse struct {
	Choices []struct {
		Message aiChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (s *AIQuestionSource) Name() string {
	return util.SourceAI
}

func (s *AIQuestionSource) Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.QuizQuestion, error) {
	if s.config.APIKey == "" {
		return nil, fmt.Errorf("%w: ai api key is not configured", util.ErrSourceUnavailable)
	}

	body, err := json.Marshal(aiChatRequest{
		Model: s.config.Model,
		Messages: []aiChatMessage{
			{Role: "system", Content: questionSystemPrompt},
			{Role: "user", Content: buildQuestionPrompt(topic, difficulty, count)},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read ai response: %v", util.ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: AI API error (status %d): %s", util.ErrSourceUnavailable, resp.StatusCode, string(raw))
	}

	var chat aiChatResponse
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("%w: decode ai response: %v", util.ErrSourceUnavailable, err)
	}
	if chat.Error != nil {
		return nil, fmt.Errorf("%w: %s", util.ErrSourceUnavailable, chat.Error.Message)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: ai response has no choices", util.ErrSourceUnavailable)
	}

	questions, err := parseGeneratedQuestions(chat.Choices[0].Message.Content, topic, difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	return questions, nil
}
