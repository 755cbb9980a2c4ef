package hasher

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignFields computes the hex HMAC-SHA256 over the pipe-delimited canonical
// string of the given fields, keyed by the shared device secret.
func SignFields(secret string, fields ...string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyFields checks a hex signature against the canonical string in
// constant time.
func VerifyFields(secret, sig string, fields ...string) bool {
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(fields, "|")))
	return hmac.Equal(want, mac.Sum(nil))
}
