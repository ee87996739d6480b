package service

import (
	"context"
	"dynamic_quiz_backend/internal/model"
	"fmt"
	"strings"
	"sync"
)

// stubSource 按 "topic/difficulty" 返回预置题目或错误
type stubSource struct {
	mu        sync.Mutex
	questions map[string][]model.QuizQuestion
	errs      map[string]error
	calls     []string
	block     chan struct{}
}

func newStubSource() *stubSource {
	return &stubSource{
		questions: make(map[string][]model.QuizQuestion),
		errs:      make(map[string]error),
	}
}

func pairKey(topic string, difficulty model.Difficulty) string {
	return topic + "/" + string(difficulty)
}

func (s *stubSource) with(topic string, difficulty model.Difficulty, qs ...model.QuizQuestion) *stubSource {
	s.questions[pairKey(topic, difficulty)] = qs
	return s
}

func (s *stubSource) failing(topic string, difficulty model.Difficulty, err error) *stubSource {
	s.errs[pairKey(topic, difficulty)] = err
	return s
}

func (s *stubSource) Name() string {
	return "stub"
}

func (s *stubSource) Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.QuizQuestion, error) {
	key := pairKey(topic, difficulty)
	s.mu.Lock()
	s.calls = append(s.calls, fmt.Sprintf("%s/%d", key, count))
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.errs[key]; err != nil {
		return nil, err
	}
	return append([]model.QuizQuestion(nil), s.questions[key]...), nil
}

func (s *stubSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func fillBlank(prompt, answer string) model.QuizQuestion {
	return model.QuizQuestion{Type: model.QuestionFillBlank, Prompt: prompt, CorrectAnswer: answer}
}

func multipleChoice(prompt string, options []string, answer string) model.QuizQuestion {
	return model.QuizQuestion{Type: model.QuestionMultipleChoice, Prompt: prompt, Options: options, CorrectAnswer: answer}
}

type recordedEvent struct {
	Type    string
	Payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) count(eventType string) int {
	n := 0
	for _, t := range p.types() {
		if strings.EqualFold(t, eventType) {
			n++
		}
	}
	return n
}
