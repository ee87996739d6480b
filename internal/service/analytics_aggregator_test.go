package service

import (
	"dynamic_quiz_backend/internal/model"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildAnalyticsFixture 为每个主题生成 total 道题，其中前 correct 道答对
func buildAnalyticsFixture(counts map[string][2]int, difficulty model.Difficulty) (*model.QuizSession, []model.QuizResponse) {
	session := &model.QuizSession{UUIDBase: model.UUIDBase{ID: "s1"}, Status: model.SessionActive}
	var responses []model.QuizResponse
	for topic, ct := range counts {
		for i := 0; i < ct[1]; i++ {
			id := fmt.Sprintf("%s-%d", topic, i)
			session.Questions = append(session.Questions, model.QuizQuestion{
				ID:         id,
				Topic:      topic,
				Difficulty: difficulty,
				Type:       model.QuestionFillBlank,
			})
			responses = append(responses, model.QuizResponse{QuestionID: id, IsCorrect: i < ct[0]})
		}
	}
	session.TotalQuestions = len(session.Questions)
	session.QuestionsAnswered = len(responses)
	return session, responses
}

func TestAggregate_WeakTopicOrdering(t *testing.T) {
	session, responses := buildAnalyticsFixture(map[string][2]int{
		"A": {1, 5},
		"B": {2, 5},
		"C": {4, 5},
	}, model.DifficultyEasy)

	snap := NewAnalyticsAggregator(60).Aggregate(session, responses)

	require.Len(t, snap.WeakTopics, 2)
	assert.Equal(t, model.WeakTopic{Topic: "A", Accuracy: 20, Correct: 1, Total: 5}, snap.WeakTopics[0])
	assert.Equal(t, model.WeakTopic{Topic: "B", Accuracy: 40, Correct: 2, Total: 5}, snap.WeakTopics[1])
	assert.Equal(t, 46.7, snap.OverallAccuracy)
	assert.Equal(t, model.PerformanceBucket{Correct: 4, Total: 5}, snap.TopicPerformance["C"])
	assert.Equal(t, model.PerformanceBucket{Correct: 7, Total: 15}, snap.DifficultyPerformance[model.DifficultyEasy])
	_, hasMedium := snap.DifficultyPerformance[model.DifficultyMedium]
	assert.False(t, hasMedium)
}

func TestAggregate_TieBreaks(t *testing.T) {
	session, responses := buildAnalyticsFixture(map[string][2]int{
		"few":   {1, 2}, // 50%
		"many":  {3, 6}, // 50%，作答更多排在前面
		"alpha": {1, 2}, // 与 few 完全相同，按名称排序
	}, model.DifficultyMedium)

	snap := NewAnalyticsAggregator(60).Aggregate(session, responses)

	require.Len(t, snap.WeakTopics, 3)
	assert.Equal(t, "many", snap.WeakTopics[0].Topic)
	assert.Equal(t, "alpha", snap.WeakTopics[1].Topic)
	assert.Equal(t, "few", snap.WeakTopics[2].Topic)
}

func TestAggregate_ThresholdIsStrict(t *testing.T) {
	session, responses := buildAnalyticsFixture(map[string][2]int{
		"edge": {3, 5}, // 正好 60%
		"low":  {1, 3}, // 33.3%
	}, model.DifficultyHard)

	snap := NewAnalyticsAggregator(60).Aggregate(session, responses)

	require.Len(t, snap.WeakTopics, 1)
	assert.Equal(t, "low", snap.WeakTopics[0].Topic)
	assert.Equal(t, 33.3, snap.WeakTopics[0].Accuracy)
}

func TestAggregate_Empty(t *testing.T) {
	session, _ := buildAnalyticsFixture(map[string][2]int{"A": {0, 3}}, model.DifficultyEasy)

	snap := NewAnalyticsAggregator(60).Aggregate(session, nil)

	assert.Equal(t, float64(0), snap.OverallAccuracy)
	assert.Empty(t, snap.TopicPerformance)
	assert.Empty(t, snap.DifficultyPerformance)
	assert.NotNil(t, snap.WeakTopics)
	assert.Empty(t, snap.WeakTopics)
}

func TestAggregate_IgnoresUnknownQuestions(t *testing.T) {
	session, responses := buildAnalyticsFixture(map[string][2]int{"A": {1, 1}}, model.DifficultyEasy)
	responses = append(responses, model.QuizResponse{QuestionID: "ghost", IsCorrect: false})

	snap := NewAnalyticsAggregator(60).Aggregate(session, responses)

	assert.Equal(t, float64(100), snap.OverallAccuracy)
	assert.Len(t, snap.TopicPerformance, 1)
	assert.Empty(t, snap.WeakTopics)
}

func TestAggregate_IsRepeatable(t *testing.T) {
	session, responses := buildAnalyticsFixture(map[string][2]int{
		"x": {0, 2},
		"y": {0, 4},
		"z": {1, 4},
	}, model.DifficultyEasy)
	agg := NewAnalyticsAggregator(60)

	first := agg.Aggregate(session, responses)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, agg.Aggregate(session, responses))
	}
	assert.Equal(t, []string{"y", "x", "z"}, []string{first.WeakTopics[0].Topic, first.WeakTopics[1].Topic, first.WeakTopics[2].Topic})
}
