package crypto

import "errors"

var (
	// ErrPasswordMismatch пароль не соответствует хешу
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrInvalidHash строка хеша не в формате PHC argon2id
	ErrInvalidHash = errors.New("invalid password hash format")
	// ErrDecrypt данные повреждены или ключ неверный
	ErrDecrypt = errors.New("failed to decrypt: authentication failed or corrupted data")
)
