package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Visitor derives a stable anonymous visitor key from the client IP and
// user agent. The raw IP is never stored.
func Visitor(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:16])
}

// IP hashes a client IP for engagement logs.
func IP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
