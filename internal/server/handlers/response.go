package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/canvassync/internal/server/service"
	"github.com/iudanet/canvassync/pkg/api"
)

// responder общие JSON ответы для всех handler'ов
type responder struct {
	logger *slog.Logger
}

// sendJSON отправляет JSON ответ
func (h responder) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой; код ошибки выводится из статуса
func (h responder) sendError(w http.ResponseWriter, message string, statusCode int) {
	WriteError(w, errorCode(statusCode), message, statusCode)
}

// sendServiceError отправляет ошибку сервиса с ее кодом
func (h responder) sendServiceError(w http.ResponseWriter, err error) {
	se := service.AsError(err)
	if se.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed", slog.Any("error", err))
	}
	WriteError(w, se.Code, se.Message, se.Status)
}

// decode читает JSON тело запроса
func (h responder) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

// WriteError пишет api.ErrorResponse; используется и в middleware
func WriteError(w http.ResponseWriter, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: code, Message: message})
}

// errorCode превращает статус в snake_case код: 401 -> "unauthorized"
func errorCode(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return "error"
	}
	return strings.ReplaceAll(strings.ToLower(text), " ", "_")
}
