package service

import (
	"dynamic_quiz_backend/internal/model"
	"sort"
)

const DefaultWeakTopicThreshold = 60.0

// AnalyticsAggregator 从完整作答记录推导统计快照，纯计算无副作用
type AnalyticsAggregator struct {
	WeakTopicThreshold float64
}

func NewAnalyticsAggregator(threshold float64) *AnalyticsAggregator {
	return &AnalyticsAggregator{WeakTopicThreshold: threshold}
}

// Aggregate 不在会话题目列表中的作答会被忽略
func (a *AnalyticsAggregator) Aggregate(session *model.QuizSession, responses []model.QuizResponse) *model.AnalyticsSnapshot {
	snapshot := &model.AnalyticsSnapshot{
		SessionID:             session.ID,
		Status:                session.Status,
		TotalQuestions:        session.TotalQuestions,
		QuestionsAnswered:     session.QuestionsAnswered,
		TopicPerformance:      make(map[string]model.PerformanceBucket),
		DifficultyPerformance: make(map[model.Difficulty]model.PerformanceBucket),
		WeakTopics:            []model.WeakTopic{},
	}

	byID := make(map[string]*model.QuizQuestion, len(session.Questions))
	for i := range session.Questions {
		byID[session.Questions[i].ID] = &session.Questions[i]
	}

	var correct, total int
	for _, r := range responses {
		q, ok := byID[r.QuestionID]
		if !ok {
			continue
		}
		total++
		tb := snapshot.TopicPerformance[q.Topic]
		db := snapshot.DifficultyPerformance[q.Difficulty]
		tb.Total++
		db.Total++
		if r.IsCorrect {
			correct++
			tb.Correct++
			db.Correct++
		}
		snapshot.TopicPerformance[q.Topic] = tb
		snapshot.DifficultyPerformance[q.Difficulty] = db
	}

	snapshot.OverallAccuracy = Score(correct, total)
	snapshot.WeakTopics = a.weakTopics(snapshot.TopicPerformance)
	return snapshot
}

func (a *AnalyticsAggregator) weakTopics(topics map[string]model.PerformanceBucket) []model.WeakTopic {
	weak := []model.WeakTopic{}
	for topic, b := range topics {
		// 100*c/t < threshold，交叉相乘避免除法误差
		if b.Total == 0 || float64(100*b.Correct) >= a.WeakTopicThreshold*float64(b.Total) {
			continue
		}
		weak = append(weak, model.WeakTopic{
			Topic:    topic,
			Accuracy: Score(b.Correct, b.Total),
			Correct:  b.Correct,
			Total:    b.Total,
		})
	}

	sort.Slice(weak, func(i, j int) bool {
		wi, wj := weak[i], weak[j]
		lhs, rhs := wi.Correct*wj.Total, wj.Correct*wi.Total
		if lhs != rhs {
			return lhs < rhs
		}
		if wi.Total != wj.Total {
			return wi.Total > wj.Total
		}
		return wi.Topic < wj.Topic
	})
	return weak
}
