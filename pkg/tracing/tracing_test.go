package tracing

import (
	"context"
	"dynamic_quiz_backend/internal/config"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGinMiddlewareRecordsRouteAndStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := NewProvider(config.TracingConfig{ServiceName: "quiz-test"}, sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/api/quiz-sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	for _, path := range []string{"/api/quiz-sessions/abc", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "GET /api/quiz-sessions/:id", ok.Name())
	assert.Equal(t, int64(http.StatusOK), attrs(ok)[semconv.HTTPStatusCodeKey].AsInt64())
	assert.Equal(t, "/api/quiz-sessions/:id", attrs(ok)[semconv.HTTPRouteKey].AsString())
	assert.Equal(t, codes.Unset, ok.Status().Code)

	failed := spans[1]
	assert.Equal(t, int64(http.StatusServiceUnavailable), attrs(failed)[semconv.HTTPStatusCodeKey].AsInt64())
	assert.Equal(t, codes.Error, failed.Status().Code)

	serviceName, found := ok.Resource().Set().Value(semconv.ServiceNameKey)
	require.True(t, found)
	assert.Equal(t, "quiz-test", serviceName.AsString())
}

func TestNewProviderSampleRatio(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := NewProvider(config.TracingConfig{SampleRatio: 5}, sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("t").Start(context.Background(), "op")
	span.End()
	assert.Len(t, recorder.Ended(), 1)
}
