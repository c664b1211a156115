package auth

import "errors"

var (
	// ErrNoPassphrase не задана passphrase для шифрования кеша токенов
	ErrNoPassphrase = errors.New("token passphrase is not set")
	// ErrNotLoggedIn нет сохраненной сессии
	ErrNotLoggedIn = errors.New("not logged in")
)
