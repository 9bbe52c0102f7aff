// Package authutil hashes and verifies the operator credential that
// guards the statusapi admin routes. Adapted from the teacher's
// misc/hash-password CLI, which did the same thing for a one-off
// setup script.
package authutil

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes a plaintext credential with the default
// cost factor, same as misc/hash-password did.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether password matches the bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
