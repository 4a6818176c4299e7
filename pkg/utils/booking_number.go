package utils

import (
	"crypto/rand"
	"math/big"
	"time"
)

const bookingSuffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateBookingNumber returns BK + UTC yyMMddHHmmss + four random characters.
// Numbers sort by creation second; the suffix makes collisions unlikely but
// callers still retry on a unique violation.
func GenerateBookingNumber(now time.Time) string {
	suffix := make([]byte, 4)
	max := big.NewInt(int64(len(bookingSuffixAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(now.UnixNano() % max.Int64())
		}
		suffix[i] = bookingSuffixAlphabet[n.Int64()]
	}
	return "BK" + now.UTC().Format("060102150405") + string(suffix)
}
