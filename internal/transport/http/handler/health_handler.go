package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger 健康检查依赖（数据库、缓存）
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	started time.Time
	checks  map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{started: time.Now(), checks: checks}
}

// Mount 挂在根路由上（不走 /api 前缀与统一信封）
func (h *HealthHandler) Mount(r gin.IRoutes) {
	r.GET("/health", h.health)
}

func (h *HealthHandler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	deps := gin.H{}
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			deps[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	msg := "Library API is running"
	if code != http.StatusOK {
		msg = "Library API is degraded"
	}
	c.JSON(code, gin.H{
		"success":   code == http.StatusOK,
		"status":    status,
		"message":   msg,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(h.started).Seconds(),
		"checks":    deps,
	})
}
