package game

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/arena/internal/database"
	"github.com/playmatatu/arena/internal/models"
)

// SessionStatus reports whether the ids a client holds still describe its
// actual game and queue.
type SessionStatus struct {
	GameSession  bool   `json:"game_session"`
	QueueSession bool   `json:"queue_session"`
	GameID       string `json:"game_id,omitempty"`
	QueueID      string `json:"queue_id,omitempty"`
}

// Reconciler compares client-held session ids with the database and cleans
// up the stale records they point at.
type Reconciler struct {
	db     *sqlx.DB
	queues Queues
	games  Games
}

func NewReconciler(db *sqlx.DB, queues Queues, games Games) *Reconciler {
	return &Reconciler{db: db, queues: queues, games: games}
}

// SessionStatus validates the claimed game and queue ids for userID. An empty
// claim is reported invalid and triggers no cleanup. Cleanup of stale records
// is best effort: failures are logged and never change the answer.
func (r *Reconciler) SessionStatus(ctx context.Context, userID, claimedGameID, claimedQueueID string) (*SessionStatus, error) {
	userID, err := validateUser(userID)
	if err != nil {
		return nil, err
	}

	actualGame, err := r.games.GetOngoingByUser(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}
	_, membership, err := r.queues.IsActive(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}

	status := &SessionStatus{}
	if actualGame != nil {
		status.GameID = actualGame.GameID
	}
	if membership != nil {
		status.QueueID = membership.QueueID
	}
	status.GameSession = claimedGameID != "" && claimedGameID == status.GameID
	status.QueueSession = claimedQueueID != "" && claimedQueueID == status.QueueID

	if claimedGameID != "" && !status.GameSession {
		r.dropStaleGame(ctx, userID, claimedGameID)
	}
	if claimedQueueID != "" && !status.QueueSession {
		r.dropStaleQueue(ctx, userID, claimedQueueID)
	}

	log.Printf("[RECONCILE] user=%s game=%v queue=%v", userID, status.GameSession, status.QueueSession)
	return status, nil
}

// dropStaleGame deletes an ongoing game the user is stuck in, or one nobody
// plays in. Completed games and other users' games are left alone.
func (r *Reconciler) dropStaleGame(ctx context.Context, userID, gameID string) {
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		g, err := r.games.LockByID(ctx, tx, gameID)
		if err != nil || g == nil || g.Status != models.GameStatusOngoing {
			return err
		}

		member, err := r.games.HasPlayer(ctx, tx, gameID, userID)
		if err != nil {
			return err
		}
		if !member {
			n, err := r.games.CountPlayers(ctx, tx, gameID)
			if err != nil || n > 0 {
				return err
			}
		}

		if _, err := r.games.DeleteByID(ctx, tx, gameID); err != nil {
			return err
		}
		removed, err := r.queues.DeleteByGameID(ctx, tx, gameID)
		if err != nil {
			return err
		}
		log.Printf("[RECONCILE] removed stale game %s for user %s (%d memberships)", gameID, userID, removed)
		return nil
	})
	if err != nil {
		log.Printf("[RECONCILE] failed to remove stale game %s for user %s: %v", gameID, userID, err)
	}
}

// dropStaleQueue deletes the user's membership in queueID and the queue
// itself once nobody is left in it.
func (r *Reconciler) dropStaleQueue(ctx context.Context, userID, queueID string) {
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.queues.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := r.queues.LockQueue(ctx, tx, queueID); err != nil {
			return err
		}
		n, err := r.queues.DeleteMembership(ctx, tx, userID, queueID)
		if err != nil {
			return err
		}
		dropped, err := r.queues.DeleteQueueIfEmpty(ctx, tx, queueID)
		if err != nil {
			return err
		}
		if n > 0 || dropped > 0 {
			log.Printf("[RECONCILE] removed stale queue %s for user %s (membership=%d queue=%d)", queueID, userID, n, dropped)
		}
		return nil
	})
	if err != nil {
		log.Printf("[RECONCILE] failed to remove stale queue %s for user %s: %v", queueID, userID, err)
	}
}
