package security

import "golang.org/x/crypto/bcrypt"

// MinPasswordLength is the shortest password accepted anywhere.
const MinPasswordLength = 8

const bcryptCost = 12

// ValidPassword reports whether a plaintext password meets the length rule.
func ValidPassword(password string) bool {
	return len(password) >= MinPasswordLength
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if errHash != nil {
		return "", errHash
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
