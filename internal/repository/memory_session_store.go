package repository

import (
	"context"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/internal/util"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	mu        sync.Mutex
	session   *model.QuizSession
	responses []model.QuizResponse
	answered  map[string]bool
}

// MemorySessionStore 进程内存储，用于本地开发与测试。
// 外层读写锁只保护 map，单个会话的提交由各自的互斥锁串行
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*memoryEntry
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*memoryEntry),
		now:      time.Now,
	}
}

var _ SessionStore = (*MemorySessionStore)(nil)

func (s *MemorySessionStore) entry(sessionID string) (*memoryEntry, error) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, util.ErrSessionNotFound
	}
	return e, nil
}

func (s *MemorySessionStore) Put(ctx context.Context, session *model.QuizSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := session.Clone()
	if stored.ID == "" {
		stored.ID = model.GenerateUUID()
		session.ID = stored.ID
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
		session.CreatedAt = stored.CreatedAt
	}
	for i := range stored.Questions {
		stored.Questions[i].SessionID = stored.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[stored.ID]; exists {
		return fmt.Errorf("%w: session %s already exists", util.ErrStoreUnavailable, stored.ID)
	}
	s.sessions[stored.ID] = &memoryEntry{
		session:  stored,
		answered: make(map[string]bool),
	}
	return nil
}

func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (*model.QuizSession, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

func (s *MemorySessionStore) AppendResponse(ctx context.Context, sessionID string, response *model.QuizResponse, apply ApplyFunc) (*model.QuizSession, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.session.IsCompleted() {
		return nil, util.ErrSessionAlreadyComplete
	}
	if e.answered[response.QuestionID] {
		return nil, util.ErrDuplicateAnswer
	}

	// apply 作用在副本上，失败时原会话保持不变
	working := e.session.Clone()
	if err := apply(working); err != nil {
		return nil, err
	}

	response.SessionID = sessionID
	if response.ID == "" {
		response.ID = model.GenerateUUID()
	}
	if response.CreatedAt.IsZero() {
		response.CreatedAt = s.now()
	}

	e.session = working
	e.responses = append(e.responses, *response)
	e.answered[response.QuestionID] = true
	return working.Clone(), nil
}

func (s *MemorySessionStore) ListResponses(ctx context.Context, sessionID string) ([]model.QuizResponse, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.QuizResponse(nil), e.responses...), nil
}

func (s *MemorySessionStore) Snapshot(ctx context.Context, sessionID string) (*model.QuizSession, []model.QuizResponse, error) {
	e, err := s.entry(sessionID)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), append([]model.QuizResponse(nil), e.responses...), nil
}

func (s *MemorySessionStore) ListSessions(ctx context.Context, learnerID string, limit int) ([]model.QuizSession, error) {
	if limit <= 0 {
		limit = util.DefaultSessionListLimit
	}

	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sessions := make([]model.QuizSession, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if learnerID == "" || e.session.LearnerID == learnerID {
			c := e.session.Clone()
			c.Questions = nil
			sessions = append(sessions, *c)
		}
		e.mu.Unlock()
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}
