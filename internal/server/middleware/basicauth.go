// file: internal/server/middleware/basicauth.go
// version: 2.0.0
// guid: a1b2c3d4-e5f6-7a8b-9c0d-1e2f3a4b5c6d

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// BasicAuth returns a Gin middleware enforcing HTTP Basic Authentication
// against username and a bcrypt hash of the expected password. An empty
// passHash disables auth entirely (the default for a loopback-only
// status API). /healthz is always exempt.
func BasicAuth(username, passHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if passHash == "" {
			c.Next()
			return
		}

		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}

		user, pass, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="ipodsync"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passMatch := bcrypt.CompareHashAndPassword([]byte(passHash), []byte(pass)) == nil

		if !userMatch || !passMatch {
			c.Header("WWW-Authenticate", `Basic realm="ipodsync"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Next()
	}
}
