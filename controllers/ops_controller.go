package controllers

import (
	"booklending/database"
	"booklending/middleware"
	"booklending/utils"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// OpsController обслуживает служебные маршруты: проверка здоровья и метрики
type OpsController struct {
	db      *database.Database
	metrics *utils.Metrics
}

// NewOpsRouter создает служебный роутер gin
func NewOpsRouter(db *database.Database, metrics *utils.Metrics, limiter *utils.RateLimiter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	c := &OpsController{db: db, metrics: metrics}
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.Logger(), middleware.CORSMiddleware(), middleware.RateLimit(limiter))

	router.GET("/healthz", c.Health)
	router.GET("/metrics", c.Metrics)
	return router
}

// Health проверяет доступность базы данных
func (c *OpsController) Health(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := c.db.Ping(pingCtx); err != nil {
		utils.LogError("Health check failed: %v", err)
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok", "driver": c.db.Driver})
}

// Metrics возвращает снимок метрик
func (c *OpsController) Metrics(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.metrics.GetMetricsSnapshot())
}
