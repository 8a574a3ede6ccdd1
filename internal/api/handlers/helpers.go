package handlers

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/middleware"
)

// respondError writes err as {"error": message} with the status of its kind.
// Database errors are logged with their cause and reported generically.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		log.Printf("[API] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func currentUser(c *gin.Context) string {
	return middleware.UserID(c)
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
