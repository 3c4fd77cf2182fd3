package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Respond writes {"error": ...} with the mapped status. Internal errors are
// attached to the context for the request logger and hidden from the client.
func Respond(c *gin.Context, err error) {
	code := StatusCode(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
