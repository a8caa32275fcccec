// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"math/big"
)

const couponCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func GenerateRandomString(length int, charset string) (string, error) {
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateCouponCode returns an 8 character code without look-alike glyphs.
func GenerateCouponCode() (string, error) {
	return GenerateRandomString(8, couponCharset)
}
