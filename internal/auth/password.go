package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12

	// bcrypt silently truncates input beyond 72 bytes; reject instead.
	maxPasswordBytes = 72
	minPasswordRunes = 8
)

// HashPassword bcrypt-hashes an operator password for storage.
func HashPassword(password string) (string, error) {
	trimmed := strings.TrimSpace(password)
	if trimmed == "" {
		return "", fmt.Errorf("password is required")
	}
	if len([]rune(trimmed)) < minPasswordRunes {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordRunes)
	}
	if len(trimmed) > maxPasswordBytes {
		return "", fmt.Errorf("password must be at most %d bytes", maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether a login attempt matches a stored hash.
func VerifyPassword(password, hash string) bool {
	trimmedPassword := strings.TrimSpace(password)
	trimmedHash := strings.TrimSpace(hash)
	if trimmedPassword == "" || trimmedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmedPassword)) == nil
}

// NormalizeUsername canonicalizes usernames so lookups are case-insensitive.
func NormalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
