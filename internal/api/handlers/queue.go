package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultPageSize = 20

// EnterQueue puts the caller in matchmaking.
func EnterQueue(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Mode       string `json:"mode" binding:"required"`
			Difficulty string `json:"difficulty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Mode is required."})
			return
		}

		res, err := mm.EnterQueue(c.Request.Context(), currentUser(c), req.Mode, req.Difficulty)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// CancelQueue removes the caller's waiting membership.
func CancelQueue(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := mm.CancelQueue(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// CreateLobby opens a named lobby with the caller in it.
func CreateLobby(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Mode       string `json:"mode" binding:"required"`
			Difficulty string `json:"difficulty"`
			Name       string `json:"name" binding:"required"`
			Password   string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Mode and name are required."})
			return
		}

		res, err := mm.CreateQueue(c.Request.Context(), currentUser(c), req.Mode, req.Difficulty, req.Name, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// JoinLobby adds the caller to a named lobby.
func JoinLobby(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Name is required."})
			return
		}

		res, err := mm.JoinQueue(c.Request.Context(), currentUser(c), req.Name, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GetQueueStatus returns the caller's most recent membership.
func GetQueueStatus(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		member, err := mm.GetStatusQueue(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, member)
	}
}

// ListQueues returns one page of lobbies.
func ListQueues(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt(c, "page", 1)
		pageSize := queryInt(c, "page_size", defaultPageSize)

		res, err := mm.ListQueues(c.Request.Context(), page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
