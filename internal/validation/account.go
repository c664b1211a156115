package validation

import (
	"fmt"
	"regexp"
)

const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
	// MinPasswordLen минимальная длина пароля учетной записи
	MinPasswordLen = 8
	// MaxPasswordLen предел argon2 входа, чтобы запрос не занимал CPU зря
	MaxPasswordLen = 256
)

// usernamePattern латиница, цифры, '_', '.', '-'; первая буква или цифра
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidateUsername проверяет имя участника холста
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return &FieldError{Field: "username", Reason: "cannot be empty"}
	case len(username) < MinUsernameLen || len(username) > MaxUsernameLen:
		return &FieldError{Field: "username", Reason: fmt.Sprintf("must be %d-%d characters long", MinUsernameLen, MaxUsernameLen)}
	case !usernamePattern.MatchString(username):
		return &FieldError{Field: "username", Reason: "may contain only letters, digits, '_', '.' or '-' and must start with a letter or digit"}
	}
	return nil
}

// ValidatePassword проверяет длину пароля
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return &FieldError{Field: "password", Reason: "cannot be empty"}
	case len(password) < MinPasswordLen:
		return &FieldError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters long", MinPasswordLen)}
	case len(password) > MaxPasswordLen:
		return &FieldError{Field: "password", Reason: fmt.Sprintf("must not exceed %d characters", MaxPasswordLen)}
	}
	return nil
}
