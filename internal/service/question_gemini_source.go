package service

import (
	"context"
	"dynamic_quiz_backend/internal/config"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/internal/util"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiQuestionSource 使用 Gemini 生成题目，要求模型直接输出 JSON
type GeminiQuestionSource struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiQuestionSource(ctx context.Context, cfg config.GeminiConfig) (*GeminiQuestionSource, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	m := client.GenerativeModel(cfg.Model)
	m.ResponseMIMEType = "application/json"
	m.SetTemperature(0.7)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(questionSystemPrompt)}}

	return &GeminiQuestionSource{client: client, model: m}, nil
}

func (s *GeminiQuestionSource) Name() string {
	return util.SourceGemini
}

func (s *GeminiQuestionSource) Close() error {
	return s.client.Close()
}

func (s *GeminiQuestionSource) Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.QuizQuestion, error) {
	resp, err := s.model.GenerateContent(ctx, genai.Text(buildQuestionPrompt(topic, difficulty, count)))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: gemini: %v", util.ErrSourceUnavailable, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no content", util.ErrSourceUnavailable)
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
		}
	}

	questions, err := parseGeneratedQuestions(content.String(), topic, difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	return questions, nil
}
