package middleware

import (
	"booklending/utils"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	emailKey  contextKey = "email"
)

type LoggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *LoggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware логирует запрос и учитывает его в метриках
func LoggingMiddleware(metrics *utils.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Создаем обертку для ResponseWriter
			lrw := &LoggingResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Обрабатываем запрос
			next.ServeHTTP(lrw, r)

			duration := time.Since(start)
			metrics.RecordRequest(duration, lrw.statusCode >= http.StatusInternalServerError)
			utils.LogInfo("Method: %s, Path: %s, Status: %d, Duration: %v",
				r.Method,
				r.URL.Path,
				lrw.statusCode,
				duration,
			)
		})
	}
}

// RateLimitMiddleware ограничивает частоту запросов с одного адреса
func RateLimitMiddleware(limiter *utils.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := clientIP(r)

			if !limiter.Allow(clientIP) {
				w.Header().Set("X-RateLimit-Reset", limiter.GetResetTime(clientIP).Format(time.RFC3339))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			// Добавляем заголовки с информацией о лимитах
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.GetRemaining(clientIP)))

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuthMiddleware проверяет JWT токен и кладет ID пользователя в контекст запроса
func AuthMiddleware(jwtKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Получаем токен из заголовка
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			// Убираем префикс "Bearer " если он есть
			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			// Парсим и проверяем токен
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return jwtKey, nil
			})
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}

			// Получаем user_id из claims
			userID, ok := claims["user_id"].(float64)
			if !ok || userID <= 0 {
				http.Error(w, "Invalid user_id in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, uint(userID))
			if email, ok := claims["email"].(string); ok {
				ctx = context.WithValue(ctx, emailKey, email)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUserID добавляет ID пользователя в контекст
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext возвращает ID пользователя, положенный AuthMiddleware
func UserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(userIDKey).(uint)
	return userID, ok
}

// GetUserFromContext получает информацию о пользователе из контекста
func GetUserFromContext(r *http.Request) (uint, string, error) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		return 0, "", fmt.Errorf("user_id not found in context")
	}

	email, _ := r.Context().Value(emailKey).(string)
	return userID, email, nil
}

// NewToken подписывает токен с user_id и сроком действия ttl
func NewToken(jwtKey []byte, userID uint, email string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtKey)
}
