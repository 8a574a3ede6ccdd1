package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/models"
)

const (
	queueColumns       = `q.queue_id, q.mode, q.difficulty, q.required_players, q.name, q.password_hash, q.created_at`
	queuePlayerColumns = `qp.id, qp.queue_id, qp.user_id, qp.status, qp.game_id, qp.joined_at`

	maxPageSize = 100
	maxPage     = 100000
)

// QueueStore reads and writes queues and queue_players.
type QueueStore struct {
	newID func() string
}

func NewQueueStore() *QueueStore {
	return &QueueStore{newID: newID}
}

// LockUser serializes concurrent transactions for the same user until the
// surrounding transaction ends. Only meaningful on a *sqlx.Tx.
func (s *QueueStore) LockUser(ctx context.Context, q Querier, userID string) error {
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return apperr.Database(err, "failed to lock user")
	}
	return nil
}

// ListWaiting returns up to limit public waiting memberships of mode belonging
// to users other than excludingUser, oldest first. Each row and its queue are
// locked for the rest of the transaction; rows whose membership or queue is
// already locked by another transaction are skipped, so two concurrent
// callers never receive the same counterpart.
func (s *QueueStore) ListWaiting(ctx context.Context, q Querier, mode, excludingUser string, limit int) ([]models.QueuePlayer, error) {
	var players []models.QueuePlayer
	err := sqlx.SelectContext(ctx, q, &players, `
		SELECT `+queuePlayerColumns+`
		FROM queue_players qp
		JOIN queues q ON q.queue_id = qp.queue_id
		WHERE q.mode = $1
		  AND q.name IS NULL
		  AND qp.status = 'waiting'
		  AND qp.user_id <> $2
		ORDER BY qp.joined_at, qp.id
		LIMIT $3
		FOR UPDATE OF qp, q SKIP LOCKED
	`, mode, excludingUser, limit)
	if err != nil {
		return nil, apperr.Database(err, "failed to list waiting players")
	}
	return players, nil
}

// ListWaitingByGroupSize returns public queues of mode sized for
// requiredCount players that still have room, with their waiting counts,
// oldest first. excludingUser's own queues are left out. Queue rows are
// locked with SKIP LOCKED like ListWaiting.
func (s *QueueStore) ListWaitingByGroupSize(ctx context.Context, q Querier, mode, excludingUser string, requiredCount, limit int) ([]models.QueueSummary, error) {
	var queues []models.QueueSummary
	err := sqlx.SelectContext(ctx, q, &queues, `
		SELECT `+queueColumns+`,
		       (SELECT COUNT(*) FROM queue_players w WHERE w.queue_id = q.queue_id AND w.status = 'waiting') AS waiting_count
		FROM queues q
		WHERE q.mode = $1
		  AND q.required_players = $2
		  AND q.name IS NULL
		  AND NOT EXISTS (SELECT 1 FROM queue_players x WHERE x.queue_id = q.queue_id AND x.user_id = $3)
		  AND NOT EXISTS (SELECT 1 FROM queue_players m WHERE m.queue_id = q.queue_id AND m.status = 'matched')
		  AND (SELECT COUNT(*) FROM queue_players w WHERE w.queue_id = q.queue_id AND w.status = 'waiting') BETWEEN 1 AND $2 - 1
		ORDER BY q.created_at, q.queue_id
		LIMIT $4
		FOR UPDATE OF q SKIP LOCKED
	`, mode, requiredCount, excludingUser, limit)
	if err != nil {
		return nil, apperr.Database(err, "failed to list open lobbies")
	}
	return queues, nil
}

// CreateWaitingEntry allocates a new public queue with userID as its only,
// waiting, member.
func (s *QueueStore) CreateWaitingEntry(ctx context.Context, q Querier, userID, mode, difficulty string, requiredPlayers int) (*models.Queue, *models.QueuePlayer, error) {
	queue, err := s.insertQueue(ctx, q, mode, difficulty, requiredPlayers, sql.NullString{}, sql.NullString{})
	if err != nil {
		return nil, nil, err
	}
	member, err := s.AddMember(ctx, q, queue.QueueID, userID, models.QueueStatusWaiting)
	if err != nil {
		return nil, nil, err
	}
	return queue, member, nil
}

// CreateNamedQueue allocates a named lobby with userID waiting in it. A taken
// name is reported as a conflict.
func (s *QueueStore) CreateNamedQueue(ctx context.Context, q Querier, userID, mode, difficulty string, requiredPlayers int, name, passwordHash string) (*models.Queue, *models.QueuePlayer, error) {
	hash := sql.NullString{String: passwordHash, Valid: passwordHash != ""}
	queue, err := s.insertQueue(ctx, q, mode, difficulty, requiredPlayers, sql.NullString{String: name, Valid: true}, hash)
	if err != nil {
		return nil, nil, err
	}
	member, err := s.AddMember(ctx, q, queue.QueueID, userID, models.QueueStatusWaiting)
	if err != nil {
		return nil, nil, err
	}
	return queue, member, nil
}

func (s *QueueStore) insertQueue(ctx context.Context, q Querier, mode, difficulty string, requiredPlayers int, name, passwordHash sql.NullString) (*models.Queue, error) {
	var queue models.Queue
	err := sqlx.GetContext(ctx, q, &queue, `
		INSERT INTO queues (queue_id, mode, difficulty, required_players, name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING queue_id, mode, difficulty, required_players, name, password_hash, created_at
	`, s.newID(), mode, difficulty, requiredPlayers, name, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("queue name %q is already taken", name.String)
		}
		return nil, apperr.Database(err, "failed to create queue")
	}
	return &queue, nil
}

// AddMember inserts userID into queueID with the given status. It does not
// touch the other members; see PromoteQueue.
func (s *QueueStore) AddMember(ctx context.Context, q Querier, queueID, userID, status string) (*models.QueuePlayer, error) {
	var member models.QueuePlayer
	err := sqlx.GetContext(ctx, q, &member, `
		INSERT INTO queue_players (queue_id, user_id, status, joined_at)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, queue_id, user_id, status, game_id, joined_at
	`, queueID, userID, status)
	if err != nil {
		return nil, apperr.Database(err, "failed to add queue member")
	}
	return &member, nil
}

// PromoteQueue marks every waiting member of queueID as matched into gameID
// and returns how many rows changed.
func (s *QueueStore) PromoteQueue(ctx context.Context, q Querier, queueID, gameID string) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE queue_players SET status = 'matched', game_id = $2
		WHERE queue_id = $1 AND status = 'waiting'
	`, queueID, gameID)
	if err != nil {
		return 0, apperr.Database(err, "failed to promote queue")
	}
	return res.RowsAffected()
}

// GetStatus returns userID's most recent membership, or nil when the user has
// never queued (or every membership was removed).
func (s *QueueStore) GetStatus(ctx context.Context, q Querier, userID string) (*models.QueuePlayer, error) {
	var member models.QueuePlayer
	err := sqlx.GetContext(ctx, q, &member, `
		SELECT `+queuePlayerColumns+`
		FROM queue_players qp
		WHERE qp.user_id = $1
		ORDER BY qp.joined_at DESC, qp.id DESC
		LIMIT 1
	`, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, apperr.Database(err, "failed to get queue status")
	}
	return &member, nil
}

// IsActive returns userID's active membership and its queue: a waiting row,
// or a matched row whose game is still ongoing. Matched rows pointing at a
// finished or missing game are stale and ignored.
func (s *QueueStore) IsActive(ctx context.Context, q Querier, userID string) (*models.Queue, *models.QueuePlayer, error) {
	var member models.QueuePlayer
	err := sqlx.GetContext(ctx, q, &member, `
		SELECT `+queuePlayerColumns+`
		FROM queue_players qp
		WHERE qp.user_id = $1
		  AND (qp.status = 'waiting'
		       OR (qp.status = 'matched' AND EXISTS (
		           SELECT 1 FROM games g WHERE g.game_id = qp.game_id AND g.status = 'ongoing')))
		ORDER BY qp.joined_at DESC, qp.id DESC
		LIMIT 1
	`, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, nil
		}
		return nil, nil, apperr.Database(err, "failed to check active membership")
	}

	queue, err := s.GetQueue(ctx, q, member.QueueID)
	if err != nil {
		return nil, nil, err
	}
	return queue, &member, nil
}

// GetQueue returns the queue or nil when it does not exist.
func (s *QueueStore) GetQueue(ctx context.Context, q Querier, queueID string) (*models.Queue, error) {
	var queue models.Queue
	err := sqlx.GetContext(ctx, q, &queue, `SELECT `+queueColumns+` FROM queues q WHERE q.queue_id = $1`, queueID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, apperr.Database(err, "failed to get queue")
	}
	return &queue, nil
}

// LockQueue returns the queue locked for update, or nil when it does not exist.
// Writers lock a queue before touching its memberships.
func (s *QueueStore) LockQueue(ctx context.Context, q Querier, queueID string) (*models.Queue, error) {
	var queue models.Queue
	err := sqlx.GetContext(ctx, q, &queue, `SELECT `+queueColumns+` FROM queues q WHERE q.queue_id = $1 FOR UPDATE`, queueID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, apperr.Database(err, "failed to lock queue")
	}
	return &queue, nil
}

// LockQueueByName returns the named queue locked for update, or nil.
func (s *QueueStore) LockQueueByName(ctx context.Context, q Querier, name string) (*models.Queue, error) {
	var queue models.Queue
	err := sqlx.GetContext(ctx, q, &queue, `SELECT `+queueColumns+` FROM queues q WHERE q.name = $1 FOR UPDATE`, name)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, apperr.Database(err, "failed to get queue")
	}
	return &queue, nil
}

// CountWaiting returns the number of waiting members of queueID.
func (s *QueueStore) CountWaiting(ctx context.Context, q Querier, queueID string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM queue_players WHERE queue_id = $1 AND status = 'waiting'`, queueID); err != nil {
		return 0, apperr.Database(err, "failed to count queue members")
	}
	return n, nil
}

// ListMembers returns every member of queueID in join order.
func (s *QueueStore) ListMembers(ctx context.Context, q Querier, queueID string) ([]models.QueuePlayer, error) {
	var members []models.QueuePlayer
	err := sqlx.SelectContext(ctx, q, &members, `
		SELECT `+queuePlayerColumns+`
		FROM queue_players qp
		WHERE qp.queue_id = $1
		ORDER BY qp.joined_at, qp.id
	`, queueID)
	if err != nil {
		return nil, apperr.Database(err, "failed to list queue members")
	}
	return members, nil
}

// DeleteByUser cancels userID's waiting membership. Zero means there was
// nothing to cancel.
func (s *QueueStore) DeleteByUser(ctx context.Context, q Querier, userID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM queue_players WHERE user_id = $1 AND status = 'waiting'`, userID)
	if err != nil {
		return 0, apperr.Database(err, "failed to cancel queue membership")
	}
	return res.RowsAffected()
}

// DeleteByQueueID removes a queue together with all of its members.
func (s *QueueStore) DeleteByQueueID(ctx context.Context, q Querier, queueID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM queues WHERE queue_id = $1`, queueID)
	if err != nil {
		return 0, apperr.Database(err, "failed to delete queue")
	}
	return res.RowsAffected()
}

// DeleteMembership removes userID's rows in queueID, whatever their status.
func (s *QueueStore) DeleteMembership(ctx context.Context, q Querier, userID, queueID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM queue_players WHERE user_id = $1 AND queue_id = $2`, userID, queueID)
	if err != nil {
		return 0, apperr.Database(err, "failed to delete queue membership")
	}
	return res.RowsAffected()
}

// DeleteByGameID removes the matched memberships that produced gameID.
func (s *QueueStore) DeleteByGameID(ctx context.Context, q Querier, gameID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM queue_players WHERE game_id = $1 AND status = 'matched'`, gameID)
	if err != nil {
		return 0, apperr.Database(err, "failed to delete matched memberships")
	}
	return res.RowsAffected()
}

// DeleteQueueIfEmpty removes queueID when it has no members left. The queue
// row is locked before membership is checked, so a member added by a
// transaction that held the lock is seen and the queue is kept. Call it
// inside a transaction.
func (s *QueueStore) DeleteQueueIfEmpty(ctx context.Context, q Querier, queueID string) (int64, error) {
	queue, err := s.LockQueue(ctx, q, queueID)
	if err != nil || queue == nil {
		return 0, err
	}

	res, err := q.ExecContext(ctx, `
		DELETE FROM queues q
		WHERE q.queue_id = $1
		  AND NOT EXISTS (SELECT 1 FROM queue_players qp WHERE qp.queue_id = q.queue_id)
	`, queueID)
	if err != nil {
		return 0, apperr.Database(err, "failed to delete empty queue")
	}
	return res.RowsAffected()
}

// DeleteEmptyQueues removes every queue without members. Queues locked by a
// concurrent join are skipped and left for the next pass.
func (s *QueueStore) DeleteEmptyQueues(ctx context.Context, q Querier) (int64, error) {
	var ids []string
	err := sqlx.SelectContext(ctx, q, &ids, `
		SELECT q.queue_id FROM queues q
		WHERE NOT EXISTS (SELECT 1 FROM queue_players qp WHERE qp.queue_id = q.queue_id)
		FOR UPDATE SKIP LOCKED
	`)
	if err != nil {
		return 0, apperr.Database(err, "failed to lock empty queues")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// re-checked under the locks: members committed meanwhile keep their queue
	res, err := q.ExecContext(ctx, `
		DELETE FROM queues q
		WHERE q.queue_id = ANY($1)
		  AND NOT EXISTS (SELECT 1 FROM queue_players qp WHERE qp.queue_id = q.queue_id)
	`, pq.Array(ids))
	if err != nil {
		return 0, apperr.Database(err, "failed to delete empty queues")
	}
	return res.RowsAffected()
}

// ExpireWaiting deletes waiting memberships that joined before olderThan and
// returns them. Memberships whose row or queue is locked by an in-flight join
// or cancel are left for the next pass.
func (s *QueueStore) ExpireWaiting(ctx context.Context, q Querier, olderThan time.Time) ([]models.QueuePlayer, error) {
	var expired []models.QueuePlayer
	err := sqlx.SelectContext(ctx, q, &expired, `
		DELETE FROM queue_players
		WHERE id IN (
			SELECT qp.id
			FROM queue_players qp
			JOIN queues q ON q.queue_id = qp.queue_id
			WHERE qp.status = 'waiting' AND qp.joined_at < $1
			FOR UPDATE OF qp, q SKIP LOCKED
		)
		RETURNING id, queue_id, user_id, status, game_id, joined_at
	`, olderThan)
	if err != nil {
		return nil, apperr.Database(err, "failed to expire waiting memberships")
	}
	return expired, nil
}

// PaginatedList returns one page of non-empty queues, newest first, each
// with its members. page is clamped to [1, 100000] and pageSize to [1, 100].
func (s *QueueStore) PaginatedList(ctx context.Context, q Querier, page, pageSize int) (*models.QueuePage, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var total int
	err := sqlx.GetContext(ctx, q, &total, `
		SELECT COUNT(*) FROM queues q
		WHERE EXISTS (SELECT 1 FROM queue_players qp WHERE qp.queue_id = q.queue_id)
	`)
	if err != nil {
		return nil, apperr.Database(err, "failed to count queues")
	}

	var queues []models.Queue
	err = sqlx.SelectContext(ctx, q, &queues, `
		SELECT `+queueColumns+`
		FROM queues q
		WHERE EXISTS (SELECT 1 FROM queue_players qp WHERE qp.queue_id = q.queue_id)
		ORDER BY q.created_at DESC, q.queue_id
		LIMIT $1 OFFSET $2
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, apperr.Database(err, "failed to list queues")
	}

	listings := make([]models.QueueListing, 0, len(queues))
	byID := make(map[string]int, len(queues))
	ids := make([]string, 0, len(queues))
	for i, qu := range queues {
		listings = append(listings, models.QueueListing{
			QueueID:         qu.QueueID,
			Mode:            qu.Mode,
			Difficulty:      qu.Difficulty,
			Name:            qu.Name.String,
			Private:         qu.PasswordHash.Valid,
			RequiredPlayers: qu.RequiredPlayers,
			CreatedAt:       qu.CreatedAt,
			Players:         []models.QueuePlayer{},
		})
		byID[qu.QueueID] = i
		ids = append(ids, qu.QueueID)
	}

	if len(ids) > 0 {
		query, args, err := sqlx.In(`
			SELECT id, queue_id, user_id, status, game_id, joined_at
			FROM queue_players
			WHERE queue_id IN (?)
			ORDER BY joined_at, id
		`, ids)
		if err != nil {
			return nil, apperr.Database(err, "failed to build member query")
		}
		var members []models.QueuePlayer
		if err := sqlx.SelectContext(ctx, q, &members, q.Rebind(query), args...); err != nil {
			return nil, apperr.Database(err, "failed to list queue members")
		}
		for _, m := range members {
			i := byID[m.QueueID]
			listings[i].Players = append(listings[i].Players, m)
		}
	}

	totalPages := (total + pageSize - 1) / pageSize
	return &models.QueuePage{
		Queues: listings,
		Pagination: models.Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}
