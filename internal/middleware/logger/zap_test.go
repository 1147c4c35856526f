package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		log, err := NewLogger(debug)
		require.NoError(t, err)
		require.NotNil(t, log)
		log.Info("logger ready", zap.Bool("debug", debug))
		_ = log.Sync()
	}
}

func TestGinMiddlewareLogsByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	r := gin.New()
	r.Use(Gin(log), Recovery(log))
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	r.GET("/bad", func(c *gin.Context) { c.JSON(http.StatusBadRequest, gin.H{"error": "x"}) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	for _, path := range []string{"/ok", "/bad", "/boom"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1, logs.FilterMessage("Request served").Len())
	assert.Equal(t, 1, logs.FilterMessage("Request rejected").Len())
	assert.Equal(t, 1, logs.FilterMessage("Recovered from panic").Len())
	assert.Equal(t, 1, logs.FilterMessage("Request failed").Len())
}
