package game

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/database"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/models"
)

// ResultRecord is the outcome of ResultGame.
type ResultRecord struct {
	Status   string       `json:"status"`
	GameID   string       `json:"game_id"`
	WinnerID string       `json:"winner_id"`
	LoserID  string       `json:"loser_id"`
	Game     *models.Game `json:"game"`
}

// Recorder finalizes games. Completion is terminal: a finished game never
// has its scores overwritten.
type Recorder struct {
	db     *sqlx.DB
	queues Queues
	games  Games
	events events.Publisher
}

func NewRecorder(db *sqlx.DB, queues Queues, games Games, pub events.Publisher) *Recorder {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Recorder{db: db, queues: queues, games: games, events: pub}
}

// ResultGame records the winner and loser of gameID and marks it completed.
// The matched queue memberships that produced the game are released so both
// players can queue again.
func (r *Recorder) ResultGame(ctx context.Context, gameID, winnerID, loserID string, winnerScore, loserScore int) (*ResultRecord, error) {
	return r.record(ctx, "", gameID, winnerID, loserID, winnerScore, loserScore)
}

// SubmitResult is ResultGame on behalf of callerID, who must be a player of
// the game.
func (r *Recorder) SubmitResult(ctx context.Context, callerID, gameID, winnerID, loserID string, winnerScore, loserScore int) (*ResultRecord, error) {
	if callerID == "" {
		return nil, apperr.BadRequest("user id required")
	}
	return r.record(ctx, callerID, gameID, winnerID, loserID, winnerScore, loserScore)
}

// record finalizes gameID. An empty callerID skips the participant check.
func (r *Recorder) record(ctx context.Context, callerID, gameID, winnerID, loserID string, winnerScore, loserScore int) (*ResultRecord, error) {
	if gameID == "" {
		return nil, apperr.BadRequest("game id required")
	}
	if winnerID == "" || loserID == "" {
		return nil, apperr.BadRequest("winner and loser are required")
	}
	if winnerID == loserID {
		return nil, apperr.BadRequest("winner and loser must differ")
	}
	if winnerScore < 0 || loserScore < 0 {
		return nil, apperr.BadRequest("scores must not be negative")
	}

	var (
		finished *models.Game
		players  []string
	)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		g, err := r.games.LockByID(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g == nil {
			return apperr.NotFound("game not found")
		}
		if g.Status == models.GameStatusCompleted {
			return apperr.Conflict("game already completed")
		}

		participants, err := r.games.ListPlayers(ctx, tx, gameID)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(participants))
		for _, p := range participants {
			seen[p.PlayerID] = true
			if !p.IsAI {
				players = append(players, p.PlayerID)
			}
		}
		if callerID != "" && !seen[callerID] {
			return apperr.Forbidden("only players of the game can submit its result")
		}
		if !seen[winnerID] || !seen[loserID] {
			return apperr.BadRequest("winner and loser must be players of the game")
		}

		finished, err = r.games.Finalize(ctx, tx, gameID, winnerID, loserID, winnerScore, loserScore)
		if err != nil {
			return err
		}
		_, err = r.queues.DeleteByGameID(ctx, tx, gameID)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.events.Publish(ctx, events.Event{Type: events.TypeGameCompleted, GameID: gameID, Players: players, WinnerID: winnerID})
	log.Printf("[RESULT] game %s completed: winner=%s (%d) loser=%s (%d)", gameID, winnerID, winnerScore, loserID, loserScore)
	return &ResultRecord{Status: StatusCompleted, GameID: gameID, WinnerID: winnerID, LoserID: loserID, Game: finished}, nil
}
