package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeyParams параметры Argon2id
type KeyParams struct {
	Time    uint32
	Memory  uint32 // KB
	Threads uint8
}

// DefaultKeyParams параметры по умолчанию (RFC 9106, второй рекомендуемый набор)
var DefaultKeyParams = KeyParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// SaltSize - размер соли в байтах
const SaltSize = 16

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey получает ключ шифрования локального кеша из passphrase
func DeriveKey(passphrase string, salt []byte, params KeyParams) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if len(salt) < 8 {
		return nil, fmt.Errorf("salt must be at least 8 bytes, got %d", len(salt))
	}
	return argon2.IDKey([]byte(passphrase), salt, params.Time, params.Memory, params.Threads, KeySize), nil
}

// DeriveKeyFromBase64Salt то же, что DeriveKey, для соли в Base64
func DeriveKeyFromBase64Salt(passphrase, saltBase64 string, params KeyParams) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	return DeriveKey(passphrase, salt, params)
}
