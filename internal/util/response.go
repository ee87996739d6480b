package util

import (
	"dynamic_quiz_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Reason  string      `json:"reason,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    http.StatusBadRequest,
		Message: message,
		Reason:  "INVALID_REQUEST",
	})
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

// RespondError 按错误分类输出，客户端错误原样返回信息，内部错误只记日志
func RespondError(c *gin.Context, err error) {
	kind, known := KindOf(err)
	if !known || kind.Status >= http.StatusInternalServerError {
		logger.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("reason", kind.Reason),
			zap.Error(err),
		)
	}
	if !known {
		InternalServerError(c)
		return
	}

	message := err.Error()
	if errors.Is(err, ErrStoreUnavailable) {
		message = ErrStoreUnavailable.Error()
	}
	c.JSON(kind.Status, Response{
		Code:    kind.Status,
		Message: message,
		Reason:  kind.Reason,
	})
}
