package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionStatus tells the client which of its held ids are still current.
func SessionStatus(ss Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			GameID  string `json:"game_id"`
			QueueID string `json:"queue_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		res, err := ss.SessionStatus(c.Request.Context(), currentUser(c), req.GameID, req.QueueID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
