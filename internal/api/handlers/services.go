package handlers

import (
	"context"

	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/models"
)

// Matchmaking is the queue and game lookup surface of game.Matchmaker.
type Matchmaking interface {
	EnterQueue(ctx context.Context, userID, mode, difficulty string) (*game.EnterResult, error)
	CancelQueue(ctx context.Context, userID string) (*game.CancelResult, error)
	CreateQueue(ctx context.Context, userID, mode, difficulty, name, password string) (*game.LobbyResult, error)
	JoinQueue(ctx context.Context, userID, name, password string) (*game.EnterResult, error)
	GetStatusQueue(ctx context.Context, userID string) (*models.QueuePlayer, error)
	ListQueues(ctx context.Context, page, pageSize int) (*models.QueuePage, error)
	SinglePlayer(ctx context.Context, userID, difficulty string) (*game.SinglePlayerResult, error)
	GetGameID(ctx context.Context, userID string) (*models.Game, error)
	GetGame(ctx context.Context, gameID string) (*models.GameDetail, error)
}

// Sessions reconciles client-held session ids.
type Sessions interface {
	SessionStatus(ctx context.Context, userID, claimedGameID, claimedQueueID string) (*game.SessionStatus, error)
}

// Results records finished games.
type Results interface {
	SubmitResult(ctx context.Context, callerID, gameID, winnerID, loserID string, winnerScore, loserScore int) (*game.ResultRecord, error)
}

var (
	_ Matchmaking = (*game.Matchmaker)(nil)
	_ Sessions    = (*game.Reconciler)(nil)
	_ Results     = (*game.Recorder)(nil)
)
