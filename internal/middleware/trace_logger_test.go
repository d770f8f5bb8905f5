package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestWithLoggerRoundTrip(t *testing.T) {
	installed := zaptest.NewLogger(t)
	fallback := zaptest.NewLogger(t)

	ctx := WithLogger(context.Background(), installed)
	assert.Same(t, installed, LoggerFromContext(ctx, fallback))
}

func TestLoggerFromContextFallsBack(t *testing.T) {
	fallback := zaptest.NewLogger(t)
	assert.Same(t, fallback, LoggerFromContext(context.Background(), fallback))
}

func TestLoggerFromRequest(t *testing.T) {
	installed := zaptest.NewLogger(t)
	fallback := zaptest.NewLogger(t)

	req := httptest.NewRequest(http.MethodGet, "/bid", nil)
	assert.Same(t, fallback, LoggerFromRequest(req, fallback))

	req = req.WithContext(WithLogger(req.Context(), installed))
	assert.Same(t, installed, LoggerFromRequest(req, fallback))
}

func TestWithTraceLoggerInstallsLogger(t *testing.T) {
	installed := zaptest.NewLogger(t)
	fallback := zaptest.NewLogger(t)

	var got *zap.Logger
	h := WithTraceLogger(installed)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = LoggerFromRequest(r, fallback)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Same(t, installed, got)
}
