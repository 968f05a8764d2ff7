package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Operators maps usernames to bcrypt hashes.
type Operators map[string]string

// Authenticate reports whether username is known and password matches its hash.
// Unknown users still cost one bcrypt comparison.
func (o Operators) Authenticate(username, password string) bool {
	hash, ok := o[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return false
	}
	return CheckPassword(password, hash)
}

var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("unknown-operator"), bcrypt.DefaultCost)
	return hash
})
