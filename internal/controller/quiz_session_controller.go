package controller

import (
	"dynamic_quiz_backend/internal/model"
	"dynamic_quiz_backend/internal/service"
	"dynamic_quiz_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type QuizSessionController struct {
	Service *service.QuizSessionService
}

func NewQuizSessionController(svc *service.QuizSessionService) *QuizSessionController {
	return &QuizSessionController{Service: svc}
}

type CreateSessionRequest struct {
	Topics                  []string `json:"topics"`
	DifficultyLevels        []string `json:"difficultyLevels"`
	QuestionsPerCombination *int     `json:"questionsPerCombination"`
	LearnerID               string   `json:"learnerId"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
	Answer     string `json:"answer"`
	TimeTaken  int    `json:"timeTaken"`
}

type CreateSessionResponse struct {
	Session   *model.QuizSession   `json:"session"`
	Questions []model.QuestionView `json:"questions"`
}

// @Summary 创建动态测验会话
// @Description 按主题与难度组合生成题目，未传 questionsPerCombination 时使用默认值
// @Tags 动态测验
// @Accept json
// @Produce json
// @Param body body CreateSessionRequest true "会话参数"
// @Success 201 {object} util.Response{data=CreateSessionResponse}
// @Failure 400 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /api/quiz-sessions [post]
func (c *QuizSessionController) CreateSession(ctx *gin.Context) {
	var req CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	perCombination := c.Service.QuizConfig().DefaultQuestionsPerCombination
	if req.QuestionsPerCombination != nil {
		perCombination = *req.QuestionsPerCombination
	}

	session, err := c.Service.CreateSession(ctx.Request.Context(), service.CreateSessionInput{
		Topics:                  req.Topics,
		DifficultyLevels:        req.DifficultyLevels,
		QuestionsPerCombination: perCombination,
		LearnerID:               req.LearnerID,
	})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	views := make([]model.QuestionView, len(session.Questions))
	for i, q := range session.Questions {
		views[i] = q.View()
	}
	util.Created(ctx, CreateSessionResponse{Session: session, Questions: views})
}

// @Summary 会话列表
// @Tags 动态测验
// @Produce json
// @Param learnerId query string false "学习者ID"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} util.Response
// @Router /api/quiz-sessions [get]
func (c *QuizSessionController) ListSessions(ctx *gin.Context) {
	limit := util.DefaultSessionListLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			util.BadRequest(ctx, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := c.Service.ListSessions(ctx.Request.Context(), ctx.Query("learnerId"), limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"items": sessions, "total": len(sessions)})
}

// @Summary 会话详情
// @Description 返回会话、题目与作答记录，未作答题目不含答案
// @Tags 动态测验
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionDetail}
// @Failure 404 {object} util.Response
// @Router /api/quiz-sessions/{id} [get]
func (c *QuizSessionController) GetSession(ctx *gin.Context) {
	detail, err := c.Service.GetSession(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, detail)
}

// @Summary 提交答案
// @Tags 动态测验
// @Accept json
// @Produce json
// @Param id path string true "会话ID"
// @Param body body SubmitAnswerRequest true "作答"
// @Success 200 {object} util.Response{data=service.SubmitResult}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/quiz-sessions/{id}/responses [post]
func (c *QuizSessionController) SubmitAnswer(ctx *gin.Context) {
	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.SubmitAnswer(ctx.Request.Context(), service.SubmitAnswerInput{
		SessionID:  ctx.Param("id"),
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		TimeTaken:  req.TimeTaken,
	})
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 会话统计
// @Description 按主题、难度统计正确率并给出薄弱主题，进行中的会话同样可用
// @Tags 动态测验
// @Produce json
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=model.AnalyticsSnapshot}
// @Failure 404 {object} util.Response
// @Router /api/quiz-sessions/{id}/analytics [get]
func (c *QuizSessionController) GetAnalytics(ctx *gin.Context) {
	snapshot, err := c.Service.GetSessionAnalytics(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, snapshot)
}
