package game

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/models"
)

// Result statuses returned to callers
const (
	StatusWaiting   = "waiting"
	StatusMatched   = "matched"
	StatusCanceled  = "canceled"
	StatusCreated   = "created"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
)

const (
	defaultTournamentSize = 4
	defaultAIDifficulty   = "medium"
	aiPlayerPrefix        = "ai:"
	maxLobbyNameLength    = 50
)

// tournament difficulty -> lobby size
var tournamentSizes = map[string]int{
	"2": 2,
	"4": 4,
	"8": 8,
}

var aiDifficulties = map[string]bool{
	"easy":   true,
	"medium": true,
	"hard":   true,
}

// letters, numbers, punctuation, symbols and space separators
var validLobbyName = regexp.MustCompile(`^[\p{L}\p{N}\p{P}\p{S}\p{Zs}]+$`)

// lobbySize validates mode and returns how many players a lobby of that mode
// needs, along with the difficulty value to store on the queue.
func lobbySize(mode, difficulty string) (int, string, error) {
	difficulty = strings.TrimSpace(difficulty)
	switch mode {
	case models.Mode1v1:
		return 2, "", nil
	case models.ModeTournament:
		if difficulty == "" {
			return defaultTournamentSize, strconv.Itoa(defaultTournamentSize), nil
		}
		size, ok := tournamentSizes[difficulty]
		if !ok {
			return 0, "", apperr.BadRequest("invalid tournament difficulty %q", difficulty)
		}
		return size, difficulty, nil
	default:
		return 0, "", apperr.BadRequest("invalid mode %q", mode)
	}
}

// aiOpponent validates a single-player difficulty and returns the token that
// occupies the opponent slot.
func aiOpponent(difficulty string) (string, error) {
	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty == "" {
		difficulty = defaultAIDifficulty
	}
	if !aiDifficulties[difficulty] {
		return "", apperr.BadRequest("invalid difficulty %q", difficulty)
	}
	return aiPlayerPrefix + difficulty, nil
}

func validateUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", apperr.BadRequest("user id required")
	}
	if strings.HasPrefix(userID, aiPlayerPrefix) {
		return "", apperr.BadRequest("invalid user id")
	}
	return userID, nil
}

func validateLobbyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxLobbyNameLength {
		return "", apperr.BadRequest("invalid queue name")
	}
	if !validLobbyName.MatchString(name) {
		return "", apperr.BadRequest("queue name contains invalid characters")
	}
	return name, nil
}
