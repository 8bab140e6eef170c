// Package secret hashes and verifies the process secret (§6's secret_key)
// at rest, the same way the teacher's onboarding saga hashes student
// passwords — bcrypt is for rest storage, not for the per-request webhook
// token compare (that one stays crypto/subtle, see DESIGN.md).
package secret

import "golang.org/x/crypto/bcrypt"

// Hash bcrypt-hashes a plaintext process secret for storage.
func Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify reports whether plain matches the stored bcrypt hash.
func Verify(plain, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
