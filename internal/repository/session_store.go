package repository

import (
	"context"
	"dynamic_quiz_backend/internal/model"
)

// ApplyFunc 在存储的原子区间内调用，用于根据新作答更新会话计数与状态。
// 返回错误时本次作答不会被写入
type ApplyFunc func(session *model.QuizSession) error

// SessionStore 会话与作答记录的存储契约
type SessionStore interface {
	// Put 一次性写入会话及其全部题目
	Put(ctx context.Context, session *model.QuizSession) error
	// Get 返回包含题目(按 position 排序)的会话，不存在时返回 util.ErrSessionNotFound
	Get(ctx context.Context, sessionID string) (*model.QuizSession, error)
	// AppendResponse 在同一原子区间内完成查重、apply 回调、写入作答与保存会话。
	// 同一 (sessionID, questionID) 重复提交返回 util.ErrDuplicateAnswer
	AppendResponse(ctx context.Context, sessionID string, response *model.QuizResponse, apply ApplyFunc) (*model.QuizSession, error)
	// ListResponses 按写入顺序返回作答记录
	ListResponses(ctx context.Context, sessionID string) ([]model.QuizResponse, error)
	// Snapshot 在一致视图下同时读取会话与全部作答
	Snapshot(ctx context.Context, sessionID string) (*model.QuizSession, []model.QuizResponse, error)
	// ListSessions 按创建时间倒序，learnerID 为空时不过滤
	ListSessions(ctx context.Context, learnerID string, limit int) ([]model.QuizSession, error)
}
