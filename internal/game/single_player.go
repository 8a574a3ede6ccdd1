package game

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/database"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
)

// SinglePlayerResult is the outcome of SinglePlayer.
type SinglePlayerResult struct {
	Status string `json:"status"`
	GameID string `json:"game_id"`
}

// SinglePlayer starts a game against the AI without going through pairing.
// A user who already has an ongoing game gets that game back with status
// "ongoing" instead of a second one.
func (m *Matchmaker) SinglePlayer(ctx context.Context, userID, difficulty string) (*SinglePlayerResult, error) {
	userID, err := validateUser(userID)
	if err != nil {
		return nil, err
	}
	opponent, err := aiOpponent(difficulty)
	if err != nil {
		return nil, err
	}

	var res *SinglePlayerResult
	err = database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		if err := m.queues.LockUser(ctx, tx, userID); err != nil {
			return err
		}

		count, err := m.games.CountOngoingByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if count > 0 {
			ongoing, err := m.games.GetOngoingByUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			if ongoing != nil {
				res = &SinglePlayerResult{Status: StatusOngoing, GameID: ongoing.GameID}
				return nil
			}
		}

		_, active, err := m.queues.IsActive(ctx, tx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.Conflict("user is waiting in a queue")
		}

		g, err := m.games.CreateGame(ctx, tx, models.ModeSingle, []store.NewGamePlayer{
			{PlayerID: userID},
			{PlayerID: opponent, IsAI: true},
		})
		if err != nil {
			return err
		}
		res = &SinglePlayerResult{Status: StatusCreated, GameID: g.GameID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Status == StatusCreated {
		m.events.Publish(ctx, events.Event{Type: events.TypeGameCreated, GameID: res.GameID, Players: []string{userID}})
	}
	log.Printf("[GAME] single player: user=%s opponent=%s status=%s game=%s", userID, opponent, res.Status, res.GameID)
	return res, nil
}
