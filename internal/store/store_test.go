package store_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"github.com/playmatatu/arena/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	queues := store.NewQueueStore()
	games := store.NewGameStore()

	t.Run("create game needs two distinct players", func(t *testing.T) {
		testutil.Truncate(t, db)

		_, err := games.CreateGame(ctx, db, models.Mode1v1, []store.NewGamePlayer{{PlayerID: "a"}})
		assert.ErrorIs(t, err, apperr.ErrBadRequest)

		tx, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)
		defer tx.Rollback()
		_, err = games.CreateGame(ctx, tx, models.Mode1v1, []store.NewGamePlayer{{PlayerID: "a"}, {PlayerID: "a"}})
		assert.ErrorIs(t, err, apperr.ErrBadRequest)
	})

	t.Run("finalize of a completed game affects nothing", func(t *testing.T) {
		testutil.Truncate(t, db)

		g, err := games.CreateGame(ctx, db, models.Mode1v1, []store.NewGamePlayer{{PlayerID: "a"}, {PlayerID: "b"}})
		require.NoError(t, err)
		_, err = games.Finalize(ctx, db, g.GameID, "a", "b", 2, 1)
		require.NoError(t, err)

		_, err = games.Finalize(ctx, db, g.GameID, "b", "a", 5, 0)
		require.ErrorIs(t, err, apperr.ErrDatabase)
		assert.Equal(t, "could not submit result", apperr.Message(err))

		detail, err := games.GetByID(ctx, db, g.GameID)
		require.NoError(t, err)
		assert.Equal(t, models.GameStatusCompleted, detail.Status)
	})

	t.Run("delete of a missing game returns nil", func(t *testing.T) {
		testutil.Truncate(t, db)

		g, err := games.DeleteByID(ctx, db, "nope")
		require.NoError(t, err)
		assert.Nil(t, g)
	})

	t.Run("waiting candidates come oldest first", func(t *testing.T) {
		testutil.Truncate(t, db)

		for _, u := range []string{"first", "second", "third"} {
			_, _, err := queues.CreateWaitingEntry(ctx, db, u, models.Mode1v1, "", 2)
			require.NoError(t, err)
		}

		got, err := queues.ListWaiting(ctx, db, models.Mode1v1, "first", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "second", got[0].UserID)
		assert.Equal(t, "third", got[1].UserID)
	})

	t.Run("locked candidates are skipped", func(t *testing.T) {
		testutil.Truncate(t, db)

		for _, u := range []string{"a", "b"} {
			_, _, err := queues.CreateWaitingEntry(ctx, db, u, models.Mode1v1, "", 2)
			require.NoError(t, err)
		}

		tx1, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)
		defer tx1.Rollback()
		first, err := queues.ListWaiting(ctx, tx1, models.Mode1v1, "x", 1)
		require.NoError(t, err)
		require.Len(t, first, 1)

		tx2, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)
		defer tx2.Rollback()
		second, err := queues.ListWaiting(ctx, tx2, models.Mode1v1, "y", 1)
		require.NoError(t, err)
		require.Len(t, second, 1)

		assert.NotEqual(t, first[0].UserID, second[0].UserID)
	})

	t.Run("group size listing only offers lobbies with room", func(t *testing.T) {
		testutil.Truncate(t, db)

		open, _, err := queues.CreateWaitingEntry(ctx, db, "a", models.ModeTournament, "4", 4)
		require.NoError(t, err)
		_, err = queues.AddMember(ctx, db, open.QueueID, "b", models.QueueStatusWaiting)
		require.NoError(t, err)
		_, _, err = queues.CreateWaitingEntry(ctx, db, "c", models.ModeTournament, "8", 8)
		require.NoError(t, err)

		got, err := queues.ListWaitingByGroupSize(ctx, db, models.ModeTournament, "z", 4, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, open.QueueID, got[0].QueueID)
		assert.Equal(t, 2, got[0].WaitingCount)

		mine, err := queues.ListWaitingByGroupSize(ctx, db, models.ModeTournament, "a", 4, 10)
		require.NoError(t, err)
		assert.Empty(t, mine)
	})

	t.Run("promote flips every waiting member", func(t *testing.T) {
		testutil.Truncate(t, db)

		q, _, err := queues.CreateWaitingEntry(ctx, db, "a", models.ModeTournament, "2", 2)
		require.NoError(t, err)
		_, err = queues.AddMember(ctx, db, q.QueueID, "b", models.QueueStatusWaiting)
		require.NoError(t, err)
		g, err := games.CreateGame(ctx, db, models.ModeTournament, []store.NewGamePlayer{{PlayerID: "a"}, {PlayerID: "b"}})
		require.NoError(t, err)

		n, err := queues.PromoteQueue(ctx, db, q.QueueID, g.GameID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		_, active, err := queues.IsActive(ctx, db, "a")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, models.QueueStatusMatched, active.Status)

		_, err = games.Finalize(ctx, db, g.GameID, "a", "b", 1, 0)
		require.NoError(t, err)
		_, active, err = queues.IsActive(ctx, db, "a")
		require.NoError(t, err)
		assert.Nil(t, active)

		removed, err := queues.DeleteByGameID(ctx, db, g.GameID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), removed)
		dropped, err := queues.DeleteQueueIfEmpty(ctx, db, q.QueueID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), dropped)
	})

	t.Run("named queue conflicts on a taken name", func(t *testing.T) {
		testutil.Truncate(t, db)

		_, _, err := queues.CreateNamedQueue(ctx, db, "a", models.Mode1v1, "", 2, "room", "")
		require.NoError(t, err)
		_, _, err = queues.CreateNamedQueue(ctx, db, "b", models.Mode1v1, "", 2, "room", "")
		assert.ErrorIs(t, err, apperr.ErrConflict)

		locked, err := queues.LockQueueByName(ctx, db, "room")
		require.NoError(t, err)
		require.NotNil(t, locked)
		assert.False(t, locked.PasswordHash.Valid)

		missing, err := queues.LockQueueByName(ctx, db, "elsewhere")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("empty queue delete keeps a member added by a concurrent join", func(t *testing.T) {
		testutil.Truncate(t, db)

		lobby, _, err := queues.CreateWaitingEntry(ctx, db, "a", models.ModeTournament, "4", 4)
		require.NoError(t, err)

		join, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)
		defer join.Rollback()
		open, err := queues.ListWaitingByGroupSize(ctx, join, models.ModeTournament, "d", 4, 1)
		require.NoError(t, err)
		require.Len(t, open, 1)

		leave, err := db.BeginTxx(ctx, nil)
		require.NoError(t, err)
		defer leave.Rollback()
		n, err := queues.DeleteMembership(ctx, leave, "a", lobby.QueueID)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		dropped := make(chan int64, 1)
		go func() {
			d, err := queues.DeleteQueueIfEmpty(ctx, leave, lobby.QueueID)
			if err != nil {
				d = -1
			}
			dropped <- d
		}()
		// give the delete time to block on the queue lock
		time.Sleep(100 * time.Millisecond)

		_, err = queues.AddMember(ctx, join, lobby.QueueID, "d", models.QueueStatusWaiting)
		require.NoError(t, err)
		require.NoError(t, join.Commit())

		assert.Equal(t, int64(0), <-dropped)
		require.NoError(t, leave.Commit())

		status, err := queues.GetStatus(ctx, db, "d")
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, models.QueueStatusWaiting, status.Status)
		assert.Equal(t, lobby.QueueID, status.QueueID)
	})

	t.Run("huge page numbers are clamped", func(t *testing.T) {
		testutil.Truncate(t, db)

		_, _, err := queues.CreateWaitingEntry(ctx, db, "a", models.Mode1v1, "", 2)
		require.NoError(t, err)

		page, err := queues.PaginatedList(ctx, db, math.MaxInt, math.MaxInt)
		require.NoError(t, err)
		assert.Empty(t, page.Queues)
		assert.Equal(t, 1, page.Pagination.Total)
		assert.Equal(t, 100, page.Pagination.PageSize)
		assert.Less(t, page.Pagination.Page, math.MaxInt)
	})

	t.Run("expire waiting removes only old waiting rows", func(t *testing.T) {
		testutil.Truncate(t, db)

		_, _, err := queues.CreateWaitingEntry(ctx, db, "old", models.Mode1v1, "", 2)
		require.NoError(t, err)
		_, err = db.Exec(`UPDATE queue_players SET joined_at = NOW() - INTERVAL '1 hour' WHERE user_id = 'old'`)
		require.NoError(t, err)
		_, _, err = queues.CreateWaitingEntry(ctx, db, "new", models.Mode1v1, "", 2)
		require.NoError(t, err)

		expired, err := queues.ExpireWaiting(ctx, db, time.Now().Add(-10*time.Minute))
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, "old", expired[0].UserID)

		n, err := queues.DeleteEmptyQueues(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		status, err := queues.GetStatus(ctx, db, "old")
		require.NoError(t, err)
		assert.Nil(t, status)
	})
}
