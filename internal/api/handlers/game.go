package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/playmatatu/arena/internal/game"
)

// StartSinglePlayer creates a game against the AI for the caller.
func StartSinglePlayer(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Difficulty string `json:"difficulty"`
		}
		// an empty body selects the default difficulty
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
		}

		res, err := mm.SinglePlayer(c.Request.Context(), currentUser(c), req.Difficulty)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusOK
		if res.Status == game.StatusCreated {
			status = http.StatusCreated
		}
		c.JSON(status, res)
	}
}

// GetCurrentGame returns the caller's ongoing game.
func GetCurrentGame(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		g, err := mm.GetGameID(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"game_id": g.GameID, "game": g})
	}
}

// GetGame returns a game with its players.
func GetGame(mm Matchmaking) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := mm.GetGame(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// SubmitResult finalizes a game the caller played in.
func SubmitResult(rs Results) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			WinnerID    string `json:"winner_id" binding:"required"`
			LoserID     string `json:"loser_id" binding:"required"`
			WinnerScore *int   `json:"winner_score" binding:"required"`
			LoserScore  *int   `json:"loser_score" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. Winner, loser and both scores are required."})
			return
		}

		res, err := rs.SubmitResult(c.Request.Context(), currentUser(c), c.Param("id"), req.WinnerID, req.LoserID, *req.WinnerScore, *req.LoserScore)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
