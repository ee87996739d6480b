package service

import (
	"context"
	"dynamic_quiz_backend/internal/config"
	"dynamic_quiz_backend/internal/event"
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/internal/repository"
	"dynamic_quiz_backend/internal/util"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(source QuestionSource) (*QuizSessionService, *repository.MemorySessionStore, *recordingPublisher) {
	store := repository.NewMemorySessionStore()
	pub := &recordingPublisher{}
	svc := NewQuizSessionService(store, source, pub, config.DefaultQuizConfig())
	return svc, store, pub
}

func mathSource() *stubSource {
	return newStubSource().with("math", model.DifficultyEasy,
		fillBlank("1 + 1 = _____", "2"),
		fillBlank("2 + 2 = _____", "4"),
	)
}

func TestCreateSessionAndCompleteAllCorrect(t *testing.T) {
	svc, _, pub := newTestService(mathSource())
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"math"},
		DifficultyLevels:        []string{"easy"},
		QuestionsPerCombination: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, session.TotalQuestions)
	assert.Equal(t, model.SessionActive, session.Status)
	assert.Equal(t, 0, session.QuestionsAnswered)
	assert.Nil(t, session.CompletedAt)
	require.Len(t, session.Questions, 2)
	assert.Equal(t, 0, session.Questions[0].Position)
	assert.Equal(t, 1, session.Questions[1].Position)
	assert.NotEqual(t, session.Questions[0].ID, session.Questions[1].ID)

	first, err := svc.SubmitAnswer(ctx, SubmitAnswerInput{
		SessionID:  session.ID,
		QuestionID: session.Questions[0].ID,
		Answer:     "2",
		TimeTaken:  5,
	})
	require.NoError(t, err)
	assert.True(t, first.IsCorrect)
	assert.False(t, first.SessionComplete)
	assert.Nil(t, first.SessionScore)
	assert.Equal(t, 1, first.QuestionsAnswered)

	second, err := svc.SubmitAnswer(ctx, SubmitAnswerInput{
		SessionID:  session.ID,
		QuestionID: session.Questions[1].ID,
		Answer:     " 4 ",
		TimeTaken:  7,
	})
	require.NoError(t, err)
	assert.True(t, second.IsCorrect)
	assert.True(t, second.SessionComplete)
	require.NotNil(t, second.SessionScore)
	assert.Equal(t, 100.0, *second.SessionScore)

	detail, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, detail.Session.Status)
	assert.NotNil(t, detail.Session.CompletedAt)
	assert.Equal(t, 12, detail.Session.TimeTaken)
	assert.Equal(t, 100.0, detail.Session.TotalScore)

	assert.Equal(t, []string{
		util.EventSessionCreated,
		util.EventAnswerSubmitted,
		util.EventAnswerSubmitted,
		util.EventSessionCompleted,
	}, pub.types())
	completed, ok := pub.events[3].Payload.(event.SessionCompleted)
	require.True(t, ok)
	assert.Equal(t, 100.0, completed.TotalScore)
}

func TestSubmitAnswer_MultipleChoiceOutsideOptions(t *testing.T) {
	source := newStubSource().with("letters", model.DifficultyMedium,
		multipleChoice("Pick B", []string{"A", "B", "C"}, "B"),
	)
	svc, _, _ := newTestService(source)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"letters"},
		DifficultyLevels:        []string{"medium"},
		QuestionsPerCombination: 1,
	})
	require.NoError(t, err)

	result, err := svc.SubmitAnswer(ctx, SubmitAnswerInput{
		SessionID:  session.ID,
		QuestionID: session.Questions[0].ID,
		Answer:     "D",
	})
	require.NoError(t, err)
	assert.False(t, result.IsCorrect)
	assert.Equal(t, "B", result.CorrectAnswer)
	assert.True(t, result.SessionComplete)
	assert.Equal(t, 0.0, *result.SessionScore)
}

func TestSubmitAnswer_ConcurrentDuplicate(t *testing.T) {
	svc, store, _ := newTestService(mathSource())
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"math"},
		DifficultyLevels:        []string{"easy"},
		QuestionsPerCombination: 2,
	})
	require.NoError(t, err)

	const workers = 20
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.SubmitAnswer(ctx, SubmitAnswerInput{
				SessionID:  session.ID,
				QuestionID: session.Questions[0].ID,
				Answer:     "2",
				TimeTaken:  1,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, util.ErrDuplicateAnswer):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)

	stored, responses, err := store.Snapshot(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.QuestionsAnswered)
	assert.Equal(t, 1, stored.TimeTaken)
	assert.Len(t, responses, 1)
}

func TestSubmitAnswer_CounterInvariant(t *testing.T) {
	source := newStubSource().
		with("go", model.DifficultyEasy, fillBlank("a", "a"), fillBlank("b", "b")).
		with("go", model.DifficultyHard, fillBlank("c", "c")).
		with("sql", model.DifficultyEasy, fillBlank("d", "d"))
	svc, store, _ := newTestService(source)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"go", "sql"},
		DifficultyLevels:        []string{"easy", "hard"},
		QuestionsPerCombination: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 4, session.TotalQuestions)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{
		session.Questions[0].Prompt, session.Questions[1].Prompt, session.Questions[2].Prompt, session.Questions[3].Prompt,
	})

	answers := []string{"a", "wrong", "c", "d"}
	for i, q := range session.Questions {
		res, err := svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: q.ID, Answer: answers[i]})
		require.NoError(t, err)

		stored, responses, err := store.Snapshot(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, len(responses), stored.QuestionsAnswered)
		assert.LessOrEqual(t, stored.QuestionsAnswered, stored.TotalQuestions)
		assert.Equal(t, stored.QuestionsAnswered == stored.TotalQuestions, stored.IsCompleted())
		assert.Equal(t, stored.IsCompleted(), res.SessionComplete)
	}

	snap, err := svc.GetSessionAnalytics(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 75.0, snap.OverallAccuracy)
	assert.Equal(t, model.PerformanceBucket{Correct: 2, Total: 3}, snap.TopicPerformance["go"])
	assert.Equal(t, model.PerformanceBucket{Correct: 2, Total: 3}, snap.DifficultyPerformance[model.DifficultyEasy])
	assert.Empty(t, snap.WeakTopics)
}

func TestSubmitAnswer_Errors(t *testing.T) {
	svc, store, _ := newTestService(mathSource())
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"math"},
		DifficultyLevels:        []string{"easy"},
		QuestionsPerCombination: 2,
	})
	require.NoError(t, err)
	qid := session.Questions[0].ID

	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: "missing", QuestionID: qid, Answer: "2"})
	assert.ErrorIs(t, err, util.ErrSessionNotFound)

	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: "other", Answer: "2"})
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)

	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: qid, Answer: "2", TimeTaken: -1})
	assert.ErrorIs(t, err, util.ErrInvalidRequest)

	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: qid, Answer: "   "})
	assert.ErrorIs(t, err, util.ErrEmptyAnswer)

	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: qid, Answer: "3"})
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: qid, Answer: "2"})
	assert.ErrorIs(t, err, util.ErrDuplicateAnswer)

	responses, err := store.ListResponses(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "3", responses[0].LearnerAnswer)
	assert.False(t, responses[0].IsCorrect)
}

func TestSubmitAnswer_CompletedSessionRejects(t *testing.T) {
	svc, store, _ := newTestService(mathSource())
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"math"},
		DifficultyLevels:        []string{"easy"},
		QuestionsPerCombination: 2,
	})
	require.NoError(t, err)
	first, second := session.Questions[0].ID, session.Questions[1].ID

	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: first, Answer: "2"})
	require.NoError(t, err)
	result, err := svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: second, Answer: "5"})
	require.NoError(t, err)
	require.True(t, result.SessionComplete)

	// 会话完成后，任何提交都以会话状态为准
	cases := map[string]SubmitAnswerInput{
		"resubmit":         {SessionID: session.ID, QuestionID: second, Answer: "4"},
		"unknown question": {SessionID: session.ID, QuestionID: "missing", Answer: "4"},
		"empty answer":     {SessionID: session.ID, QuestionID: first, Answer: "  "},
		"negative time":    {SessionID: session.ID, QuestionID: first, Answer: "2", TimeTaken: -1},
	}
	for name, in := range cases {
		_, err := svc.SubmitAnswer(ctx, in)
		assert.ErrorIs(t, err, util.ErrSessionAlreadyComplete, name)
	}

	stored, responses, err := store.Snapshot(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.QuestionsAnswered)
	assert.Equal(t, 1, stored.CorrectAnswers)
	assert.Len(t, responses, 2)
}

func TestNewQuizSessionService_InvalidConfigFallsBackToDefaults(t *testing.T) {
	svc := NewQuizSessionService(repository.NewMemorySessionStore(), mathSource(), nil, config.QuizConfig{})
	assert.Equal(t, config.DefaultQuizConfig(), svc.QuizConfig())

	done := make(chan error, 1)
	go func() {
		_, err := svc.CreateSession(context.Background(), CreateSessionInput{
			Topics:                  []string{"math"},
			DifficultyLevels:        []string{"easy"},
			QuestionsPerCombination: 2,
		})
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("CreateSession did not return")
	}
}

func TestCreateSession_InvalidRequests(t *testing.T) {
	svc, _, _ := newTestService(mathSource())
	ctx := context.Background()

	cases := map[string]CreateSessionInput{
		"no topics":       {DifficultyLevels: []string{"easy"}, QuestionsPerCombination: 1},
		"blank topic":     {Topics: []string{"math", "  "}, DifficultyLevels: []string{"easy"}, QuestionsPerCombination: 1},
		"no difficulties": {Topics: []string{"math"}, QuestionsPerCombination: 1},
		"bad difficulty":  {Topics: []string{"math"}, DifficultyLevels: []string{"expert"}, QuestionsPerCombination: 1},
		"zero count":      {Topics: []string{"math"}, DifficultyLevels: []string{"easy"}, QuestionsPerCombination: 0},
		"above max":       {Topics: []string{"math"}, DifficultyLevels: []string{"easy"}, QuestionsPerCombination: 11},
		"negative count":  {Topics: []string{"math"}, DifficultyLevels: []string{"easy"}, QuestionsPerCombination: -2},
	}
	for name, in := range cases {
		_, err := svc.CreateSession(ctx, in)
		assert.ErrorIs(t, err, util.ErrInvalidRequest, name)
	}
}

func TestCreateSession_NormalizesInput(t *testing.T) {
	source := mathSource()
	svc, _, _ := newTestService(source)

	session, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Topics:                  []string{" math ", "math"},
		DifficultyLevels:        []string{"EASY", "easy "},
		QuestionsPerCombination: 2,
		LearnerID:               " learner-1 ",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"math"}, session.Topics)
	assert.Equal(t, []model.Difficulty{model.DifficultyEasy}, session.DifficultyLevels)
	assert.Equal(t, "learner-1", session.LearnerID)
	assert.Equal(t, 1, source.callCount())
}

func TestCreateSession_PartialAndDroppedQuestions(t *testing.T) {
	source := newStubSource().
		with("math", model.DifficultyEasy,
			fillBlank("ok", "1"),
			model.QuizQuestion{Type: "essay", Prompt: "bad type", CorrectAnswer: "x"},
			multipleChoice("one option", []string{"A"}, "A"),
			multipleChoice("answer outside", []string{"A", "B"}, "C"),
			model.QuizQuestion{Type: model.QuestionTrueFalse, Prompt: "tf", CorrectAnswer: "maybe"},
			fillBlank("", "x"),
			fillBlank("also ok", "2"),
			fillBlank("beyond n", "3"),
		).
		with("math", model.DifficultyHard)
	svc, _, _ := newTestService(source)

	session, err := svc.CreateSession(context.Background(), CreateSessionInput{
		Topics:                  []string{"math"},
		DifficultyLevels:        []string{"easy", "hard"},
		QuestionsPerCombination: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 2, session.TotalQuestions)
	assert.Equal(t, "ok", session.Questions[0].Prompt)
	assert.Equal(t, "also ok", session.Questions[1].Prompt)
	for _, q := range session.Questions {
		assert.Equal(t, "math", q.Topic)
		assert.Equal(t, model.DifficultyEasy, q.Difficulty)
	}
}

func TestCreateSession_GenerationFailures(t *testing.T) {
	ctx := context.Background()
	in := CreateSessionInput{Topics: []string{"math"}, DifficultyLevels: []string{"easy", "hard"}, QuestionsPerCombination: 2}

	svc, store, pub := newTestService(newStubSource())
	_, err := svc.CreateSession(ctx, in)
	assert.ErrorIs(t, err, util.ErrGenerationUnavailable)

	outage := fmt.Errorf("%w: upstream down", util.ErrSourceUnavailable)
	svc, _, _ = newTestService(newStubSource().failing("math", model.DifficultyEasy, outage))
	_, err = svc.CreateSession(ctx, in)
	assert.ErrorIs(t, err, util.ErrSourceUnavailable)

	// 部分失败按题目不足处理
	svc, _, _ = newTestService(mathSource().failing("math", model.DifficultyHard, outage))
	session, err := svc.CreateSession(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, session.TotalQuestions)

	sessions, err := store.ListSessions(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Zero(t, pub.count(util.EventSessionCreated))
}

func TestCreateSession_CancelledBeforePersist(t *testing.T) {
	source := mathSource()
	source.block = make(chan struct{})
	svc, store, _ := newTestService(source)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for source.callCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"math"},
		DifficultyLevels:        []string{"easy"},
		QuestionsPerCombination: 2,
	})
	assert.ErrorIs(t, err, context.Canceled)

	sessions, err := store.ListSessions(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestGetSession_HidesUnansweredAnswers(t *testing.T) {
	svc, _, _ := newTestService(mathSource())
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"math"},
		DifficultyLevels:        []string{"easy"},
		QuestionsPerCombination: 2,
	})
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Answer: "nope"})
	require.NoError(t, err)

	detail, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, detail.Questions, 2)
	assert.True(t, detail.Questions[0].Answered)
	assert.Equal(t, "2", detail.Questions[0].CorrectAnswer)
	require.NotNil(t, detail.Questions[0].IsCorrect)
	assert.False(t, *detail.Questions[0].IsCorrect)
	assert.False(t, detail.Questions[1].Answered)
	assert.Empty(t, detail.Questions[1].CorrectAnswer)
	assert.Equal(t, 0.0, detail.Accuracy)
	assert.Len(t, detail.Responses, 1)

	_, err = svc.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}

func TestGetSessionAnalytics_MidSessionAndThresholdReload(t *testing.T) {
	source := newStubSource().
		with("a", model.DifficultyEasy, fillBlank("a1", "x"), fillBlank("a2", "x")).
		with("b", model.DifficultyEasy, fillBlank("b1", "x"), fillBlank("b2", "x"))
	svc, _, _ := newTestService(source)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"a", "b"},
		DifficultyLevels:        []string{"easy"},
		QuestionsPerCombination: 2,
	})
	require.NoError(t, err)

	snap, err := svc.GetSessionAnalytics(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.OverallAccuracy)
	assert.Empty(t, snap.TopicPerformance)

	// a: 1/2, b: 未作答
	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Answer: "x"})
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: session.Questions[1].ID, Answer: "y"})
	require.NoError(t, err)

	snap, err = svc.GetSessionAnalytics(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, snap.Status)
	assert.Equal(t, 2, snap.QuestionsAnswered)
	require.Len(t, snap.WeakTopics, 1)
	assert.Equal(t, "a", snap.WeakTopics[0].Topic)
	_, hasB := snap.TopicPerformance["b"]
	assert.False(t, hasB)

	cfg := svc.QuizConfig()
	cfg.WeakTopicThreshold = 50
	require.NoError(t, svc.UpdateQuizConfig(cfg))

	snap, err = svc.GetSessionAnalytics(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.WeakTopics)

	_, err = svc.GetSessionAnalytics(ctx, "missing")
	assert.ErrorIs(t, err, util.ErrSessionNotFound)
}

func TestUpdateQuizConfig_RejectsInvalid(t *testing.T) {
	svc, _, _ := newTestService(mathSource())
	before := svc.QuizConfig()

	bad := before
	bad.MaxQuestionsPerCombination = 0
	assert.Error(t, svc.UpdateQuizConfig(bad))
	assert.Equal(t, before, svc.QuizConfig())
}

func TestPublishFailureDoesNotFailSubmission(t *testing.T) {
	store := repository.NewMemorySessionStore()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewQuizSessionService(store, mathSource(), pub, config.DefaultQuizConfig())
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, CreateSessionInput{
		Topics:                  []string{"math"},
		DifficultyLevels:        []string{"easy"},
		QuestionsPerCombination: 1,
	})
	require.NoError(t, err)

	res, err := svc.SubmitAnswer(ctx, SubmitAnswerInput{SessionID: session.ID, QuestionID: session.Questions[0].ID, Answer: "2"})
	require.NoError(t, err)
	assert.True(t, res.SessionComplete)
}

func TestListSessions(t *testing.T) {
	svc, _, _ := newTestService(mathSource())
	ctx := context.Background()

	for _, learner := range []string{"alice", "bob", "alice"} {
		_, err := svc.CreateSession(ctx, CreateSessionInput{
			Topics:                  []string{"math"},
			DifficultyLevels:        []string{"easy"},
			QuestionsPerCombination: 1,
			LearnerID:               learner,
		})
		require.NoError(t, err)
	}

	alice, err := svc.ListSessions(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, alice, 2)
	for _, s := range alice {
		assert.Equal(t, "alice", s.LearnerID)
	}

	all, err := svc.ListSessions(ctx, "", 1000)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
