package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodySize is the default request body limit. Page log batches are the
// largest bodies the API accepts.
const MaxBodySize = 1 << 20

// BodyLimit rejects requests whose declared body exceeds maxBytes with 413
// and caps the rest so handlers never read past it.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = MaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
				"limit": maxBytes,
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
