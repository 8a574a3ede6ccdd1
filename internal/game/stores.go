package game

import (
	"context"
	"time"

	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
)

// Queues is the subset of store.QueueStore the game services use.
type Queues interface {
	LockUser(ctx context.Context, q store.Querier, userID string) error
	ListWaiting(ctx context.Context, q store.Querier, mode, excludingUser string, limit int) ([]models.QueuePlayer, error)
	ListWaitingByGroupSize(ctx context.Context, q store.Querier, mode, excludingUser string, requiredCount, limit int) ([]models.QueueSummary, error)
	CreateWaitingEntry(ctx context.Context, q store.Querier, userID, mode, difficulty string, requiredPlayers int) (*models.Queue, *models.QueuePlayer, error)
	CreateNamedQueue(ctx context.Context, q store.Querier, userID, mode, difficulty string, requiredPlayers int, name, passwordHash string) (*models.Queue, *models.QueuePlayer, error)
	AddMember(ctx context.Context, q store.Querier, queueID, userID, status string) (*models.QueuePlayer, error)
	PromoteQueue(ctx context.Context, q store.Querier, queueID, gameID string) (int64, error)
	GetStatus(ctx context.Context, q store.Querier, userID string) (*models.QueuePlayer, error)
	IsActive(ctx context.Context, q store.Querier, userID string) (*models.Queue, *models.QueuePlayer, error)
	GetQueue(ctx context.Context, q store.Querier, queueID string) (*models.Queue, error)
	LockQueue(ctx context.Context, q store.Querier, queueID string) (*models.Queue, error)
	LockQueueByName(ctx context.Context, q store.Querier, name string) (*models.Queue, error)
	CountWaiting(ctx context.Context, q store.Querier, queueID string) (int, error)
	ListMembers(ctx context.Context, q store.Querier, queueID string) ([]models.QueuePlayer, error)
	DeleteByUser(ctx context.Context, q store.Querier, userID string) (int64, error)
	DeleteByQueueID(ctx context.Context, q store.Querier, queueID string) (int64, error)
	DeleteMembership(ctx context.Context, q store.Querier, userID, queueID string) (int64, error)
	DeleteByGameID(ctx context.Context, q store.Querier, gameID string) (int64, error)
	DeleteQueueIfEmpty(ctx context.Context, q store.Querier, queueID string) (int64, error)
	DeleteEmptyQueues(ctx context.Context, q store.Querier) (int64, error)
	ExpireWaiting(ctx context.Context, q store.Querier, olderThan time.Time) ([]models.QueuePlayer, error)
	PaginatedList(ctx context.Context, q store.Querier, page, pageSize int) (*models.QueuePage, error)
}

// Games is the subset of store.GameStore the game services use.
type Games interface {
	CreateGame(ctx context.Context, q store.Querier, mode string, players []store.NewGamePlayer) (*models.Game, error)
	GetOngoingByUser(ctx context.Context, q store.Querier, userID string) (*models.Game, error)
	CountOngoingByUser(ctx context.Context, q store.Querier, userID string) (int, error)
	GetByID(ctx context.Context, q store.Querier, gameID string) (*models.GameDetail, error)
	ListPlayers(ctx context.Context, q store.Querier, gameID string) ([]models.GamePlayer, error)
	LockByID(ctx context.Context, q store.Querier, gameID string) (*models.Game, error)
	HasPlayer(ctx context.Context, q store.Querier, gameID, playerID string) (bool, error)
	CountPlayers(ctx context.Context, q store.Querier, gameID string) (int, error)
	Finalize(ctx context.Context, q store.Querier, gameID, winnerID, loserID string, winnerScore, loserScore int) (*models.Game, error)
	DeleteByID(ctx context.Context, q store.Querier, gameID string) (*models.Game, error)
	ExpireOngoing(ctx context.Context, q store.Querier, olderThan time.Time) ([]models.Game, error)
}

var (
	_ Queues = (*store.QueueStore)(nil)
	_ Games  = (*store.GameStore)(nil)
)
