package controllers

import (
	"booklending/middleware"
	"booklending/models"
	"booklending/services"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorResponse тело ответа с ошибкой
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON отправляет ответ в формате JSON
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError переводит ошибку предметной области в HTTP-статус
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotEligible), errors.Is(err, models.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, models.ErrOutOfStock),
		errors.Is(err, models.ErrDuplicateActive),
		errors.Is(err, models.ErrWrongState),
		errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidDate), errors.Is(err, models.ErrInvalidStock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// currentUser возвращает ID пользователя из контекста или отвечает 401
func currentUser(w http.ResponseWriter, r *http.Request) (uint, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return 0, false
	}
	return userID, true
}

// requireAdmin пропускает только администратора
func requireAdmin(w http.ResponseWriter, r *http.Request, users services.UserLookup) (uint, bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return 0, false
	}
	actor, err := users.Lookup(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return 0, false
	}
	if !actor.IsAdmin() {
		writeError(w, fmt.Errorf("%w: требуется администратор", models.ErrNotEligible))
		return 0, false
	}
	return userID, true
}

// pathID читает числовой параметр маршрута или отвечает 400
func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 32)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// decodeBody разбирает тело запроса и валидирует его
func decodeBody(w http.ResponseWriter, r *http.Request, v *validator.Validate, dto interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	if err := validateRequest(v, dto); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

// validateRequest валидирует DTO и возвращает ошибки валидации
func validateRequest(v *validator.Validate, dto interface{}) error {
	err := v.Struct(dto)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	var errorMessages []string
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
		case "gt":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше "+e.Param())
		case "gte":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не меньше "+e.Param())
		case "datetime":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть датой в формате "+e.Param())
		case "oneof":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
		default:
			errorMessages = append(errorMessages, "поле "+e.Field()+" неверно")
		}
	}
	return errors.New(strings.Join(errorMessages, "; "))
}
