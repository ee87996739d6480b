// 本地模拟一次完整的动态测验会话并打印统计结果
//
// 使用内存存储与内置题库，不依赖数据库与外部服务，便于调整薄弱主题阈值等参数时快速验证。
//
// 用法: go run scripts/simulate_session.go scripts/scenarios/sample.yaml

package main

import (
	"context"
	"dynamic_quiz_backend/internal/config"
	"dynamic_quiz_backend/internal/repository"
	"dynamic_quiz_backend/internal/service"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

type scenario struct {
	Topics                  []string `yaml:"topics"`
	DifficultyLevels        []string `yaml:"difficulty_levels"`
	QuestionsPerCombination int      `yaml:"questions_per_combination"`
	LearnerID               string   `yaml:"learner_id"`
	Accuracy                float64  `yaml:"accuracy"`
	WeakTopicThreshold      float64  `yaml:"weak_topic_threshold"`
	Seed                    int64    `yaml:"seed"`
}

func main() {
	path := "scripts/scenarios/sample.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("无法读取场景文件: %v", err)
	}

	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		log.Fatalf("解析场景文件失败: %v", err)
	}

	quizCfg := config.DefaultQuizConfig()
	if sc.WeakTopicThreshold > 0 {
		quizCfg.WeakTopicThreshold = sc.WeakTopicThreshold
	}
	if sc.QuestionsPerCombination == 0 {
		sc.QuestionsPerCombination = quizCfg.DefaultQuestionsPerCombination
	}

	rng := rand.New(rand.NewSource(sc.Seed))
	store := repository.NewMemorySessionStore()
	source := service.NewFallbackQuestionSource(
		service.NewTemplateQuestionSourceWithRand(rand.New(rand.NewSource(sc.Seed))),
		service.GenericQuestionSource{},
	)
	svc := service.NewQuizSessionService(store, source, nil, quizCfg)

	ctx := context.Background()
	session, err := svc.CreateSession(ctx, service.CreateSessionInput{
		Topics:                  sc.Topics,
		DifficultyLevels:        sc.DifficultyLevels,
		QuestionsPerCombination: sc.QuestionsPerCombination,
		LearnerID:               sc.LearnerID,
	})
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}
	log.Printf("会话 %s 已创建，共 %d 题", session.ID, session.TotalQuestions)

	for _, q := range session.Questions {
		answer := "I don't know"
		if rng.Float64() < sc.Accuracy {
			answer = q.CorrectAnswer
		}
		result, err := svc.SubmitAnswer(ctx, service.SubmitAnswerInput{
			SessionID:  session.ID,
			QuestionID: q.ID,
			Answer:     answer,
			TimeTaken:  5 + rng.Intn(25),
		})
		if err != nil {
			log.Fatalf("提交答案失败: %v", err)
		}
		fmt.Printf("[%s/%s] %-60.60s correct=%v\n", q.Topic, q.Difficulty, q.Prompt, result.IsCorrect)
		if result.SessionComplete {
			fmt.Printf("会话完成，得分 %.1f\n", *result.SessionScore)
		}
	}

	snapshot, err := svc.GetSessionAnalytics(ctx, session.ID)
	if err != nil {
		log.Fatalf("获取统计失败: %v", err)
	}
	out, _ := json.MarshalIndent(snapshot, "", "  ")
	fmt.Println(string(out))
}
