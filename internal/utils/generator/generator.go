package generator

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

const (
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	AccessCodeLength   = 6
)

func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateAccessCode returns a short upper-case code a candidate can type by hand.
func GenerateAccessCode() (string, error) {
	code := make([]byte, AccessCodeLength)
	max := big.NewInt(int64(len(accessCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = accessCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
