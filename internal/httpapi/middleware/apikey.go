package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/agent-platform/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// APIKey checks the shared secret in header against either the plaintext
// key or a bcrypt hash of it.
func APIKey(header, key, hash string) gin.HandlerFunc {
	v := &keyVerifier{key: []byte(key), hash: []byte(hash)}
	return func(c *gin.Context) {
		got := c.GetHeader(header)
		if got == "" {
			common.Fail(c, http.StatusUnauthorized, CodeUnauthorized, "missing API key")
			return
		}
		if !v.verify(got) {
			common.Fail(c, http.StatusUnauthorized, CodeUnauthorized, "invalid API key")
			return
		}
		c.Next()
	}
}

type keyVerifier struct {
	key  []byte
	hash []byte

	// digests of keys that already passed bcrypt
	accepted sync.Map
}

func (v *keyVerifier) verify(got string) bool {
	if len(v.key) > 0 {
		return subtle.ConstantTimeCompare([]byte(got), v.key) == 1
	}
	if len(v.hash) == 0 {
		return false
	}
	digest := sha256.Sum256([]byte(got))
	if _, ok := v.accepted.Load(digest); ok {
		return true
	}
	if bcrypt.CompareHashAndPassword(v.hash, []byte(got)) != nil {
		return false
	}
	v.accepted.Store(digest, struct{}{})
	return true
}
