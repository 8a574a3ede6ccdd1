package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/models"
)

const gameColumns = `g.game_id, g.mode, g.status, g.created_at, g.end_time`

// NewGamePlayer is a participant handed to CreateGame.
type NewGamePlayer struct {
	PlayerID string
	IsAI     bool
}

// GameStore reads and writes games and game_players.
type GameStore struct {
	newID func() string
}

func NewGameStore() *GameStore {
	return &GameStore{newID: newID}
}

// CreateGame allocates an ongoing game with one GamePlayer row per
// participant. At least two participants are required.
func (s *GameStore) CreateGame(ctx context.Context, q Querier, mode string, players []NewGamePlayer) (*models.Game, error) {
	if len(players) < 2 {
		return nil, apperr.BadRequest("a game needs at least two participants")
	}

	var game models.Game
	err := sqlx.GetContext(ctx, q, &game, `
		INSERT INTO games (game_id, mode, status, created_at)
		VALUES ($1, $2, 'ongoing', clock_timestamp())
		RETURNING game_id, mode, status, created_at, end_time
	`, s.newID(), mode)
	if err != nil {
		return nil, apperr.Database(err, "could not create game")
	}

	for _, p := range players {
		res, err := q.ExecContext(ctx, `
			INSERT INTO game_players (game_id, player_id, is_ai)
			VALUES ($1, $2, $3)
		`, game.GameID, p.PlayerID, p.IsAI)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, apperr.BadRequest("player %s listed twice", p.PlayerID)
			}
			return nil, apperr.Database(err, "could not add game player")
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil, apperr.Database(nil, "could not add game player")
		}
	}
	return &game, nil
}

// GetOngoingByUser returns userID's most recent ongoing game, or nil.
func (s *GameStore) GetOngoingByUser(ctx context.Context, q Querier, userID string) (*models.Game, error) {
	var games []models.Game
	err := sqlx.SelectContext(ctx, q, &games, `
		SELECT `+gameColumns+`
		FROM games g
		JOIN game_players gp ON gp.game_id = g.game_id
		WHERE gp.player_id = $1 AND gp.is_ai = FALSE AND g.status = 'ongoing'
		ORDER BY g.created_at DESC, g.game_id
		LIMIT 1
	`, userID)
	if err != nil {
		return nil, apperr.Database(err, "failed to get ongoing game")
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}

// CountOngoingByUser returns how many ongoing games userID takes part in.
func (s *GameStore) CountOngoingByUser(ctx context.Context, q Querier, userID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `
		SELECT COUNT(*)
		FROM games g
		JOIN game_players gp ON gp.game_id = g.game_id
		WHERE gp.player_id = $1 AND gp.is_ai = FALSE AND g.status = 'ongoing'
	`, userID)
	if err != nil {
		return 0, apperr.Database(err, "failed to count ongoing games")
	}
	return n, nil
}

// GetByID returns the game with its participants.
func (s *GameStore) GetByID(ctx context.Context, q Querier, gameID string) (*models.GameDetail, error) {
	var game models.Game
	err := sqlx.GetContext(ctx, q, &game, `SELECT `+gameColumns+` FROM games g WHERE g.game_id = $1`, gameID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("game not found")
		}
		return nil, apperr.Database(err, "failed to get game")
	}

	players, err := s.ListPlayers(ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	return &models.GameDetail{Game: game, Players: players}, nil
}

// ListPlayers returns the participants of gameID, humans first.
func (s *GameStore) ListPlayers(ctx context.Context, q Querier, gameID string) ([]models.GamePlayer, error) {
	players := []models.GamePlayer{}
	err := sqlx.SelectContext(ctx, q, &players, `
		SELECT game_id, player_id, is_ai, score, is_winner
		FROM game_players
		WHERE game_id = $1
		ORDER BY is_ai, player_id
	`, gameID)
	if err != nil {
		return nil, apperr.Database(err, "failed to list game players")
	}
	return players, nil
}

// LockByID returns the game row locked for update, or nil when absent.
func (s *GameStore) LockByID(ctx context.Context, q Querier, gameID string) (*models.Game, error) {
	var game models.Game
	err := sqlx.GetContext(ctx, q, &game, `SELECT `+gameColumns+` FROM games g WHERE g.game_id = $1 FOR UPDATE`, gameID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, apperr.Database(err, "failed to lock game")
	}
	return &game, nil
}

// HasPlayer reports whether playerID takes part in gameID.
func (s *GameStore) HasPlayer(ctx context.Context, q Querier, gameID, playerID string) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `
		SELECT EXISTS (SELECT 1 FROM game_players WHERE game_id = $1 AND player_id = $2)
	`, gameID, playerID)
	if err != nil {
		return false, apperr.Database(err, "failed to check game player")
	}
	return ok, nil
}

// CountPlayers returns the number of participants of gameID.
func (s *GameStore) CountPlayers(ctx context.Context, q Querier, gameID string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM game_players WHERE game_id = $1`, gameID); err != nil {
		return 0, apperr.Database(err, "failed to count game players")
	}
	return n, nil
}

// Finalize completes an ongoing game: the winner and loser rows get their
// scores, every other participant is marked as not winning. A statement that
// changes no row fails the whole call, so the caller's transaction rolls back.
func (s *GameStore) Finalize(ctx context.Context, q Querier, gameID, winnerID, loserID string, winnerScore, loserScore int) (*models.Game, error) {
	var game models.Game
	err := sqlx.GetContext(ctx, q, &game, `
		UPDATE games SET status = 'completed', end_time = NOW()
		WHERE game_id = $1 AND status = 'ongoing'
		RETURNING game_id, mode, status, created_at, end_time
	`, gameID)
	if err != nil {
		if isNoRows(err) {
			return nil, apperr.Database(nil, "could not submit result")
		}
		return nil, apperr.Database(err, "could not submit result")
	}

	stamp := func(playerID string, score int, won bool) error {
		res, err := q.ExecContext(ctx, `
			UPDATE game_players SET score = $3, is_winner = $4
			WHERE game_id = $1 AND player_id = $2
		`, gameID, playerID, score, won)
		if err != nil {
			return apperr.Database(err, "could not submit result")
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return apperr.Database(nil, "could not submit result")
		}
		return nil
	}
	if err := stamp(winnerID, winnerScore, true); err != nil {
		return nil, err
	}
	if err := stamp(loserID, loserScore, false); err != nil {
		return nil, err
	}

	if _, err := q.ExecContext(ctx, `
		UPDATE game_players SET is_winner = FALSE
		WHERE game_id = $1 AND player_id <> $2 AND player_id <> $3
	`, gameID, winnerID, loserID); err != nil {
		return nil, apperr.Database(err, "could not submit result")
	}
	return &game, nil
}

// ExpireOngoing completes every ongoing game created before olderThan without
// recording a winner, and returns them. Games locked by a result submission
// or a session repair are left for the next pass.
func (s *GameStore) ExpireOngoing(ctx context.Context, q Querier, olderThan time.Time) ([]models.Game, error) {
	var games []models.Game
	err := sqlx.SelectContext(ctx, q, &games, `
		UPDATE games SET status = 'completed', end_time = NOW()
		WHERE game_id IN (
			SELECT game_id FROM games
			WHERE status = 'ongoing' AND created_at < $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING game_id, mode, status, created_at, end_time
	`, olderThan)
	if err != nil {
		return nil, apperr.Database(err, "failed to expire ongoing games")
	}
	return games, nil
}

// DeleteByID removes a game and its participants, returning the removed game
// or nil when nothing matched.
func (s *GameStore) DeleteByID(ctx context.Context, q Querier, gameID string) (*models.Game, error) {
	var games []models.Game
	err := sqlx.SelectContext(ctx, q, &games, `
		DELETE FROM games WHERE game_id = $1
		RETURNING game_id, mode, status, created_at, end_time
	`, gameID)
	if err != nil {
		return nil, apperr.Database(err, "failed to delete game")
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}
