package middleware

import (
	"net/http"
	"strconv"
	"time"

	"booklending/utils"

	"github.com/gin-gonic/gin"
)

// RateLimit middleware для ограничения частоты запросов
func RateLimit(limiter *utils.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Получаем IP-адрес клиента
		clientIP := c.ClientIP()

		// Проверяем лимит
		if !limiter.Allow(clientIP) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"reset": limiter.GetResetTime(clientIP),
			})
			c.Abort()
			return
		}

		// Добавляем заголовки с информацией о лимитах
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.GetRemaining(clientIP)))
		c.Header("X-RateLimit-Reset", limiter.GetResetTime(clientIP).Format(time.RFC3339))

		c.Next()
	}
}

// Logger middleware для логирования запросов
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Начало запроса
		startTime := time.Now()

		// Обработка запроса
		c.Next()

		// Время выполнения
		duration := time.Since(startTime)

		// Логируем информацию о запросе
		utils.LogInfo("Request: %s %s - Status: %d - Duration: %v",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			duration,
		)

		// Логируем ошибки
		for _, e := range c.Errors {
			utils.LogError("Error: %v", e)
		}
	}
}

// Recovery middleware для обработки паник
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// Логируем панику
				utils.LogError("Panic recovered: %v", err)

				// Отправляем ответ клиенту
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}

// CORSMiddleware middleware для CORS
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
