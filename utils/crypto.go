package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SHA256Hex возвращает hex-представление SHA-256 хеша данных.
// Используется для фиксации условий договора и подписей сторон.
func SHA256Hex(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// GenerateHMAC создает HMAC для данных
func GenerateHMAC(data string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ValidateHMAC проверяет HMAC
func ValidateHMAC(data string, signature string, key []byte) bool {
	expected := GenerateHMAC(data, key)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// GenerateRandomKey генерирует случайный ключ заданной длины
func GenerateRandomKey(length int) ([]byte, error) {
	key := make([]byte, length)
	_, err := rand.Read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random key: %v", err)
	}
	return key, nil
}

// GenerateSecureToken генерирует безопасный токен
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %v", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
