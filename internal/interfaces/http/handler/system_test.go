package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(context.Context) error { return p.err }

func systemRoutes(h *SystemHandler) func(r *gin.Engine) {
	return func(r *gin.Engine) {
		r.GET("/health", h.Health)
		r.GET("/ready", h.Ready)
		r.GET("/system/info", h.GetSystemInfo)
	}
}

func TestSystemHandler_Health(t *testing.T) {
	h := NewSystemHandler("wooerp", "1.0.0", stubPinger{err: errors.New("down")})

	w := performRequest(systemRoutes(h), http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestSystemHandler_Ready(t *testing.T) {
	t.Run("database reachable", func(t *testing.T) {
		h := NewSystemHandler("wooerp", "1.0.0", stubPinger{})
		w := performRequest(systemRoutes(h), http.MethodGet, "/ready", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("database down", func(t *testing.T) {
		h := NewSystemHandler("wooerp", "1.0.0", stubPinger{err: errors.New("connection refused")})
		w := performRequest(systemRoutes(h), http.MethodGet, "/ready", nil, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("no database", func(t *testing.T) {
		h := NewSystemHandler("wooerp", "1.0.0", nil)
		w := performRequest(systemRoutes(h), http.MethodGet, "/ready", nil, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("wooerp", "1.2.3", nil)

	w := performRequest(systemRoutes(h), http.MethodGet, "/system/info", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, decodeResponse(t, w))
	assert.Equal(t, "wooerp", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}
