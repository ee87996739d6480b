package model

// PerformanceBucket 某个主题或难度下的作答统计
type PerformanceBucket struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

type WeakTopic struct {
	Topic    string  `json:"topic"`
	Accuracy float64 `json:"accuracy"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
}

// AnalyticsSnapshot 每次请求都从作答记录重新计算，不落库
type AnalyticsSnapshot struct {
	SessionID             string                           `json:"sessionId"`
	Status                SessionStatus                    `json:"status"`
	TotalQuestions        int                              `json:"totalQuestions"`
	QuestionsAnswered     int                              `json:"questionsAnswered"`
	OverallAccuracy       float64                          `json:"overallAccuracy"`
	TopicPerformance      map[string]PerformanceBucket     `json:"topicPerformance"`
	DifficultyPerformance map[Difficulty]PerformanceBucket `json:"difficultyPerformance"`
	WeakTopics            []WeakTopic                      `json:"weakTopics"`
}
