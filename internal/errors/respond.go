package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const plainText = "text/plain; charset=utf-8"

// AbortWithBadRequest sends a 400 Bad Request response with a plain-text body and aborts the request.
func AbortWithBadRequest(c *gin.Context, message string) {
	c.Data(http.StatusBadRequest, plainText, []byte(message))
	c.Abort()
}

// AbortWithInternal sends a 500 Internal Server Error response with a plain-text body and aborts the request.
func AbortWithInternal(c *gin.Context, message string) {
	if message == "" {
		message = "Internal error"
	}
	c.Data(http.StatusInternalServerError, plainText, []byte(message))
	c.Abort()
}

// AbortWithTooManyRequests sends a 429 response and aborts the request.
func AbortWithTooManyRequests(c *gin.Context) {
	c.Data(http.StatusTooManyRequests, plainText, []byte("Too many requests"))
	c.Abort()
}

// AbortWithError picks the status from the error taxonomy.
func AbortWithError(c *gin.Context, err error) {
	if StatusFor(err) == http.StatusBadRequest {
		AbortWithBadRequest(c, Message(err))
		return
	}
	AbortWithInternal(c, Message(err))
}
