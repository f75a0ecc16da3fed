package utils

import "golang.org/x/crypto/bcrypt"

// hashCost trades login latency against offline brute-force resistance.
const hashCost = bcrypt.DefaultCost

// HashPassword derives the bcrypt hash stored in usuarios.password_hash.
// The plaintext is never persisted anywhere.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
