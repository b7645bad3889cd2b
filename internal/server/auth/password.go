package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a salted bcrypt hash of password. The cost factor is
// bcrypt's default, which keeps verification around 100ms on commodity
// hardware so brute forcing stays expensive.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored bcrypt hash.
// A malformed hash yields false, never an error.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
