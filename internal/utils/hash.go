package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// CalculateHash returns hex(sha256(body || key)), the value sent in the HashSHA256 header.
func CalculateHash(body []byte, key string) string {
	h := sha256.New()
	h.Write(body)
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}
