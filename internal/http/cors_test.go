package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCreateCORSMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		enabled bool
		origins string
		wantNil bool
	}{
		{name: "disabled", enabled: false, origins: "https://shop.example.com", wantNil: true},
		{name: "enabled without origins", enabled: true, origins: "", wantNil: true},
		{name: "enabled with only separators", enabled: true, origins: " , ,", wantNil: true},
		{name: "enabled with origins", enabled: true, origins: "https://shop.example.com, https://admin.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := createCORSMiddleware(tt.enabled, tt.origins, logger)
			if tt.wantNil {
				assert.Nil(t, middleware)
			} else {
				assert.NotNil(t, middleware)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, parseOrigins(""))
	assert.Equal(t,
		[]string{"https://shop.example.com", "https://admin.example.com"},
		parseOrigins(" https://shop.example.com ,,https://admin.example.com "),
	)
}

func corsRouter(enabled bool) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := gin.New()
	if middleware := createCORSMiddleware(enabled, "https://shop.example.com", logger); middleware != nil {
		router.Use(middleware)
	}
	router.POST("/v1/events/track", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	})
	return router
}

func TestCORSIntegration_PreflightAllowsAPIKeyHeader(t *testing.T) {
	router := corsRouter(true)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/v1/events/track", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "X-API-Key, Content-Type")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "x-api-key")
}

func TestCORSIntegration_NoHeadersWhenDisabled(t *testing.T) {
	router := corsRouter(false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/track", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
