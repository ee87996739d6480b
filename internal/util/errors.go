package util

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrSessionNotFound        = errors.New("session not found")
	ErrQuestionNotFound       = errors.New("question not found in session")
	ErrDuplicateAnswer        = errors.New("question already answered")
	ErrSessionAlreadyComplete = errors.New("session already complete")
	ErrEmptyAnswer            = errors.New("answer is empty")
	ErrGenerationUnavailable  = errors.New("no questions could be generated")
	ErrSourceUnavailable      = errors.New("question source unavailable")
	ErrStoreUnavailable       = errors.New("session store unavailable")
)

// ErrorKind 错误对应的 HTTP 状态码与原因码
type ErrorKind struct {
	Status int
	Reason string
}

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidRequest, ErrorKind{http.StatusBadRequest, "INVALID_REQUEST"}},
	{ErrEmptyAnswer, ErrorKind{http.StatusBadRequest, "EMPTY_ANSWER"}},
	{ErrSessionNotFound, ErrorKind{http.StatusNotFound, "SESSION_NOT_FOUND"}},
	{ErrQuestionNotFound, ErrorKind{http.StatusNotFound, "QUESTION_NOT_FOUND"}},
	{ErrDuplicateAnswer, ErrorKind{http.StatusConflict, "DUPLICATE_ANSWER"}},
	{ErrSessionAlreadyComplete, ErrorKind{http.StatusConflict, "SESSION_ALREADY_COMPLETE"}},
	{ErrGenerationUnavailable, ErrorKind{http.StatusServiceUnavailable, "GENERATION_UNAVAILABLE"}},
	{ErrSourceUnavailable, ErrorKind{http.StatusServiceUnavailable, "SOURCE_UNAVAILABLE"}},
	{ErrStoreUnavailable, ErrorKind{http.StatusInternalServerError, "STORE_UNAVAILABLE"}},
}

// KindOf 未知错误按内部错误处理
func KindOf(err error) (ErrorKind, bool) {
	for _, e := range errorKinds {
		if errors.Is(err, e.err) {
			return e.kind, true
		}
	}
	return ErrorKind{http.StatusInternalServerError, "INTERNAL"}, false
}
