package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Коды ошибок, которые видит клиент в ErrorResponse.Error и Ack.Code
const (
	CodeInvalidRequest    = "invalid_request"
	CodeInvalidProperties = "invalid_properties"
	CodeNotFound          = "not_found"
	CodeAlreadyExists     = "already_exists"
	CodeOperationMismatch = "operation_mismatch"
	CodeInternal          = "internal_error"
)

// Error ошибка сервиса с HTTP статусом и машинно-читаемым кодом
type Error struct {
	Err     error
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(code string, err error) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: code, Message: err.Error(), Err: err}
}

func badRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeInvalidRequest, Message: message}
}

func notFound(message string, err error) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: message, Err: err}
}

func internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error", Err: err}
}

// AsError приводит любую ошибку к *Error; неизвестные становятся internal
func AsError(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return internal(err)
}
