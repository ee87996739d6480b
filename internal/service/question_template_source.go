package service

import (
	"context"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/internal/util"
	"math/rand"
	"strings"
	"sync"
	"time"
)

type questionTemplate struct {
	Type        model.QuestionType
	Prompt      string
	Options     []string
	Correct     string
	Explanation string
}

// TemplateQuestionSource 内置题库，无外部依赖，本地开发与兜底时使用
type TemplateQuestionSource struct {
	catalog map[string]map[model.Difficulty][]questionTemplate
	mu      sync.Mutex
	rng     *rand.Rand
}

func NewTemplateQuestionSource() *TemplateQuestionSource {
	return NewTemplateQuestionSourceWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewTemplateQuestionSourceWithRand 测试中传入固定种子
func NewTemplateQuestionSourceWithRand(rng *rand.Rand) *TemplateQuestionSource {
	return &TemplateQuestionSource{catalog: defaultCatalog, rng: rng}
}

func (s *TemplateQuestionSource) Name() string {
	return util.SourceTemplate
}

// HasTopic 题库中是否存在该主题
func (s *TemplateQuestionSource) HasTopic(topic string) bool {
	_, ok := s.catalog[catalogKey(topic)]
	return ok
}

// Generate 从题库中随机抽取至多 count 道题，主题或难度缺失时返回空
func (s *TemplateQuestionSource) Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.QuizQuestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	available := s.catalog[catalogKey(topic)][difficulty]
	if len(available) == 0 || count <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	perm := s.rng.Perm(len(available))
	s.mu.Unlock()

	if count > len(available) {
		count = len(available)
	}
	questions := make([]model.QuizQuestion, 0, count)
	for _, idx := range perm[:count] {
		t := available[idx]
		questions = append(questions, model.QuizQuestion{
			Topic:         topic,
			Difficulty:    difficulty,
			Type:          t.Type,
			Prompt:        t.Prompt,
			Options:       append([]string(nil), t.Options...),
			CorrectAnswer: t.Correct,
			Explanation:   t.Explanation,
		})
	}
	return questions, nil
}

// catalogKey "Machine Learning" -> "machine_learning"
func catalogKey(topic string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(topic)), " ", "_")
}

// GenericQuestionSource 按主题名拼出的通用题目，其他来源失败时兜底
type GenericQuestionSource struct{}

func (GenericQuestionSource) Name() string {
	return "generic"
}

func (GenericQuestionSource) Generate(ctx context.Context, topic string, difficulty model.Difficulty, count int) ([]model.QuizQuestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	questions := []model.QuizQuestion{
		{
			Type:   model.QuestionMultipleChoice,
			Prompt: "What is the primary purpose of " + topic + "?",
			Options: []string{
				"To solve problems in " + topic,
				"To avoid " + topic,
				"To ignore " + topic,
				"To complicate " + topic,
			},
			CorrectAnswer: "To solve problems in " + topic,
			Explanation:   "This is the fundamental purpose of " + topic + ".",
		},
		{
			Type:          model.QuestionTrueFalse,
			Prompt:        topic + " is an important concept in its field.",
			CorrectAnswer: "True",
			Explanation:   topic + " is indeed an important concept that is widely used.",
		},
		{
			Type:          model.QuestionFillBlank,
			Prompt:        "The main goal of " + topic + " is to _____ effectively.",
			CorrectAnswer: "work",
			Explanation:   topic + " is designed to work effectively in its intended context.",
		},
	}
	if count < len(questions) {
		questions = questions[:count]
	}
	for i := range questions {
		questions[i].Topic = topic
		questions[i].Difficulty = difficulty
	}
	return questions, nil
}

var defaultCatalog = map[string]map[model.Difficulty][]questionTemplate{
	"python": {
		model.DifficultyEasy: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is the correct way to create a variable in Python?",
				Options:     []string{"var x = 5", "x = 5", "let x = 5", "const x = 5"},
				Correct:     "x = 5",
				Explanation: "In Python, variables are created by simply assigning a value using the = operator.",
			},
			{
				Type:        model.QuestionTrueFalse,
				Prompt:      "Python is a compiled language.",
				Correct:     "False",
				Explanation: "Python is an interpreted language, not compiled.",
			},
			{
				Type:        model.QuestionFillBlank,
				Prompt:      "To print text in Python, use the _____ function.",
				Correct:     "print",
				Explanation: "The print() function is used to output text to the console.",
			},
		},
		model.DifficultyMedium: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is the output of: print(type([]))?",
				Options:     []string{"<class 'list'>", "<class 'array'>", "<class 'tuple'>", "<class 'set'>"},
				Correct:     "<class 'list'>",
				Explanation: "The type() function returns the class of an object. [] creates a list.",
			},
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "Which method is used to add an element to a list?",
				Options:     []string{"add()", "append()", "insert()", "push()"},
				Correct:     "append()",
				Explanation: "The append() method adds an element to the end of a list.",
			},
		},
		model.DifficultyHard: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is a decorator in Python?",
				Options:     []string{"A function that modifies another function", "A type of variable", "A loop construct", "A data structure"},
				Correct:     "A function that modifies another function",
				Explanation: "Decorators are functions that modify the behavior of other functions.",
			},
			{
				Type:        model.QuestionShortAnswer,
				Prompt:      "Explain the difference between __init__ and __new__ methods in Python.",
				Correct:     "__new__ creates the instance, __init__ initializes it",
				Explanation: "__new__ is called first to create the instance, then __init__ is called to initialize it.",
			},
		},
	},
	"javascript": {
		model.DifficultyEasy: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "How do you declare a variable in JavaScript?",
				Options:     []string{"var x = 5", "let x = 5", "const x = 5", "All of the above"},
				Correct:     "All of the above",
				Explanation: "JavaScript supports var, let, and const for variable declaration.",
			},
			{
				Type:        model.QuestionTrueFalse,
				Prompt:      "JavaScript is a statically typed language.",
				Correct:     "False",
				Explanation: "JavaScript is dynamically typed, not statically typed.",
			},
		},
		model.DifficultyMedium: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is the difference between == and === in JavaScript?",
				Options:     []string{"No difference", "== checks value, === checks value and type", "=== is faster", "== is deprecated"},
				Correct:     "== checks value, === checks value and type",
				Explanation: "== performs type coercion, === checks both value and type.",
			},
		},
		model.DifficultyHard: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is closure in JavaScript?",
				Options:     []string{"A function that has access to variables in its outer scope", "A way to close browser tabs", "A method to end loops", "A type of variable"},
				Correct:     "A function that has access to variables in its outer scope",
				Explanation: "Closures allow functions to access variables from their outer scope even after the outer function has returned.",
			},
		},
	},
	"machine_learning": {
		model.DifficultyEasy: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is supervised learning?",
				Options:     []string{"Learning without labels", "Learning with labeled data", "Learning from rewards", "Learning from environment"},
				Correct:     "Learning with labeled data",
				Explanation: "Supervised learning uses labeled training data to learn patterns.",
			},
		},
		model.DifficultyMedium: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is overfitting in machine learning?",
				Options:     []string{"Model performs well on training data but poorly on new data", "Model is too simple", "Model has too few parameters", "Model is too fast"},
				Correct:     "Model performs well on training data but poorly on new data",
				Explanation: "Overfitting occurs when a model learns the training data too well and fails to generalize.",
			},
		},
		model.DifficultyHard: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is the difference between bagging and boosting?",
				Options:     []string{"Bagging reduces variance, boosting reduces bias", "They are the same thing", "Bagging is faster", "Boosting is simpler"},
				Correct:     "Bagging reduces variance, boosting reduces bias",
				Explanation: "Bagging (Bootstrap Aggregating) reduces variance, while boosting reduces bias.",
			},
		},
	},
	"data_science": {
		model.DifficultyEasy: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is a DataFrame?",
				Options:     []string{"A 2D labeled data structure", "A type of graph", "A database table", "A programming language"},
				Correct:     "A 2D labeled data structure",
				Explanation: "A DataFrame is a 2D labeled data structure with columns that can be of different types.",
			},
		},
		model.DifficultyMedium: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is the purpose of data normalization?",
				Options:     []string{"To make data fit in memory", "To scale features to similar ranges", "To remove outliers", "To sort data"},
				Correct:     "To scale features to similar ranges",
				Explanation: "Normalization scales features to a similar range, often between 0 and 1.",
			},
		},
		model.DifficultyHard: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is the curse of dimensionality?",
				Options:     []string{"Data becomes sparse in high dimensions", "Computers get slower", "Memory usage increases", "Algorithms become simpler"},
				Correct:     "Data becomes sparse in high dimensions",
				Explanation: "As dimensions increase, data becomes increasingly sparse, making it harder to find patterns.",
			},
		},
	},
	"web_development": {
		model.DifficultyEasy: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What does HTML stand for?",
				Options:     []string{"HyperText Markup Language", "High Tech Modern Language", "Home Tool Markup Language", "Hyperlink and Text Markup Language"},
				Correct:     "HyperText Markup Language",
				Explanation: "HTML stands for HyperText Markup Language.",
			},
		},
		model.DifficultyMedium: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is the purpose of CSS?",
				Options:     []string{"To style web pages", "To create databases", "To write server code", "To handle user input"},
				Correct:     "To style web pages",
				Explanation: "CSS (Cascading Style Sheets) is used to style and layout web pages.",
			},
		},
		model.DifficultyHard: {
			{
				Type:        model.QuestionMultipleChoice,
				Prompt:      "What is the difference between GET and POST requests?",
				Options:     []string{"GET is for reading, POST is for creating/updating", "GET is faster", "POST is more secure", "All of the above"},
				Correct:     "All of the above",
				Explanation: "GET is typically for reading data, POST for creating/updating, and POST is more secure as data is not in URL.",
			},
		},
	},
}
