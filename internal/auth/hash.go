package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPIN derives a one-way credential hash from a PIN. PINs are trimmed
// before hashing, mirroring identifier normalization.
func HashPIN(pin string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(pin)), bcrypt.DefaultCost)
}

// VerifyPIN reports whether pin matches the stored credential hash.
func VerifyPIN(hash []byte, pin string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(strings.TrimSpace(pin))) == nil
}
