package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	otpMin = 100000
	otpMax = 999999
)

var otpSpan = big.NewInt(otpMax - otpMin + 1)

// GenerateOTP returns a 6-digit code drawn uniformly from [100000, 999999]
// and the instant it stops being valid.
func GenerateOTP(now time.Time, ttl time.Duration) (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", time.Time{}, err
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), now.Add(ttl), nil
}
