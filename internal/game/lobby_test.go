package game_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLobbiesAndSinglePlayer(t *testing.T) {
	ctx := context.Background()

	withDB(t, map[string]func(t *testing.T, e *env){
		"private lobby checks the password": func(t *testing.T, e *env) {
			created, err := e.matchmaker.CreateQueue(ctx, "host", models.Mode1v1, "", "Friday Night", "s3cret")
			require.NoError(t, err)
			assert.Equal(t, game.StatusWaiting, created.Status)
			assert.Equal(t, 2, created.RequiredPlayers)

			var hash string
			require.NoError(t, e.db.Get(&hash, `SELECT password_hash FROM queues WHERE queue_id = $1`, created.QueueID))
			assert.NotEqual(t, "s3cret", hash)

			_, err = e.matchmaker.JoinQueue(ctx, "guest", "Friday Night", "wrong")
			require.ErrorIs(t, err, apperr.ErrBadRequest)
			assert.Equal(t, "wrong password", apperr.Message(err))
			assert.Zero(t, e.waitingRows(t, "guest"))

			res, err := e.matchmaker.JoinQueue(ctx, "guest", "Friday Night", "s3cret")
			require.NoError(t, err)
			assert.Equal(t, game.StatusMatched, res.Status)
			assert.Equal(t, created.QueueID, res.QueueID)
			assert.Len(t, e.pub.ofType(events.TypeMatchFound), 1)

			detail, err := e.matchmaker.GetGame(ctx, res.GameID)
			require.NoError(t, err)
			assert.Len(t, detail.Players, 2)
		},

		"named lobbies are not used for public matchmaking": func(t *testing.T, e *env) {
			created, err := e.matchmaker.CreateQueue(ctx, "host", models.Mode1v1, "", "closed door", "")
			require.NoError(t, err)

			res, err := e.matchmaker.EnterQueue(ctx, "stranger", models.Mode1v1, "")
			require.NoError(t, err)
			assert.Equal(t, game.StatusWaiting, res.Status)
			assert.NotEqual(t, created.QueueID, res.QueueID)

			page, err := e.matchmaker.ListQueues(ctx, 1, 10)
			require.NoError(t, err)
			require.Len(t, page.Queues, 2)
			var named *models.QueueListing
			for i := range page.Queues {
				if page.Queues[i].QueueID == created.QueueID {
					named = &page.Queues[i]
				}
			}
			require.NotNil(t, named)
			assert.Equal(t, "closed door", named.Name)
			assert.False(t, named.Private)
		},

		"lobby names are unique": func(t *testing.T, e *env) {
			_, err := e.matchmaker.CreateQueue(ctx, "a", models.ModeTournament, "4", "arena", "")
			require.NoError(t, err)

			_, err = e.matchmaker.CreateQueue(ctx, "b", models.ModeTournament, "4", "arena", "")
			assert.ErrorIs(t, err, apperr.ErrConflict)
			assert.Zero(t, e.waitingRows(t, "b"))

			_, err = e.matchmaker.CreateQueue(ctx, "c", models.ModeTournament, "4", "   ", "")
			assert.ErrorIs(t, err, apperr.ErrBadRequest)
		},

		"joining a missing lobby": func(t *testing.T, e *env) {
			_, err := e.matchmaker.JoinQueue(ctx, "guest", "nowhere", "")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		},

		"a started lobby cannot be joined": func(t *testing.T, e *env) {
			_, err := e.matchmaker.CreateQueue(ctx, "a", models.Mode1v1, "", "duel", "")
			require.NoError(t, err)
			_, err = e.matchmaker.JoinQueue(ctx, "b", "duel", "")
			require.NoError(t, err)

			_, err = e.matchmaker.JoinQueue(ctx, "c", "duel", "")
			assert.ErrorIs(t, err, apperr.ErrConflict)
		},

		"tournament lobby fills from named joins": func(t *testing.T, e *env) {
			_, err := e.matchmaker.CreateQueue(ctx, "h", models.ModeTournament, "4", "cup", "pw")
			require.NoError(t, err)

			for _, u := range []string{"j1", "j2"} {
				res, err := e.matchmaker.JoinQueue(ctx, u, "cup", "pw")
				require.NoError(t, err)
				assert.Equal(t, game.StatusWaiting, res.Status)
			}
			again, err := e.matchmaker.JoinQueue(ctx, "j1", "cup", "pw")
			require.NoError(t, err)
			assert.Equal(t, game.StatusWaiting, again.Status)
			assert.Equal(t, 1, e.waitingRows(t, "j1"))

			res, err := e.matchmaker.JoinQueue(ctx, "j3", "cup", "pw")
			require.NoError(t, err)
			require.Equal(t, game.StatusMatched, res.Status)

			detail, err := e.matchmaker.GetGame(ctx, res.GameID)
			require.NoError(t, err)
			assert.Len(t, detail.Players, 4)
		},

		"creating a lobby while queued conflicts": func(t *testing.T, e *env) {
			_, err := e.matchmaker.EnterQueue(ctx, "busy", models.Mode1v1, "")
			require.NoError(t, err)

			_, err = e.matchmaker.CreateQueue(ctx, "busy", models.Mode1v1, "", "mine", "")
			assert.ErrorIs(t, err, apperr.ErrConflict)
		},

		"overlong lobby passwords are rejected": func(t *testing.T, e *env) {
			_, err := e.matchmaker.CreateQueue(ctx, "X", models.Mode1v1, "", "vault", strings.Repeat("p", 73))
			require.ErrorIs(t, err, apperr.ErrBadRequest)
			assert.Zero(t, e.count(t, `SELECT COUNT(*) FROM queues`))

			_, err = e.matchmaker.CreateQueue(ctx, "X", models.Mode1v1, "", "vault", strings.Repeat("p", 72))
			require.NoError(t, err)
		},

		"joining and cancelling one's own lobby at once": func(t *testing.T, e *env) {
			for round := 0; round < 10; round++ {
				host, name := fmt.Sprintf("host-%d", round), fmt.Sprintf("room-%d", round)
				_, err := e.matchmaker.CreateQueue(ctx, host, models.ModeTournament, "4", name, "")
				require.NoError(t, err)

				var (
					wg        sync.WaitGroup
					joinErr   error
					cancelErr error
				)
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, joinErr = e.matchmaker.JoinQueue(ctx, host, name, "")
				}()
				go func() {
					defer wg.Done()
					_, cancelErr = e.matchmaker.CancelQueue(ctx, host)
				}()
				wg.Wait()

				require.NoError(t, cancelErr, "round %d", round)
				if joinErr != nil {
					require.ErrorIs(t, joinErr, apperr.ErrNotFound, "round %d", round)
				}
				assert.Zero(t, e.waitingRows(t, host), "round %d", round)
			}
			assert.Zero(t, e.count(t, `SELECT COUNT(*) FROM queues`))
		},

		"single player game against the AI": func(t *testing.T, e *env) {
			res, err := e.matchmaker.SinglePlayer(ctx, "solo", "hard")
			require.NoError(t, err)
			assert.Equal(t, game.StatusCreated, res.Status)
			require.NotEmpty(t, res.GameID)

			detail, err := e.matchmaker.GetGame(ctx, res.GameID)
			require.NoError(t, err)
			assert.Equal(t, models.ModeSingle, detail.Mode)
			require.Len(t, detail.Players, 2)
			assert.Equal(t, "solo", detail.Players[0].PlayerID)
			assert.False(t, detail.Players[0].IsAI)
			assert.Equal(t, "ai:hard", detail.Players[1].PlayerID)
			assert.True(t, detail.Players[1].IsAI)
			assert.Len(t, e.pub.ofType(events.TypeGameCreated), 1)

			again, err := e.matchmaker.SinglePlayer(ctx, "solo", "easy")
			require.NoError(t, err)
			assert.Equal(t, game.StatusOngoing, again.Status)
			assert.Equal(t, res.GameID, again.GameID)
			assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM games`))

			_, err = e.matchmaker.EnterQueue(ctx, "solo", models.Mode1v1, "")
			assert.ErrorIs(t, err, apperr.ErrConflict)

			_, err = e.recorder.ResultGame(ctx, res.GameID, "solo", "ai:hard", 7, 2)
			require.NoError(t, err)
			next, err := e.matchmaker.SinglePlayer(ctx, "solo", "")
			require.NoError(t, err)
			assert.Equal(t, game.StatusCreated, next.Status)
		},

		"single player rejects unknown difficulty": func(t *testing.T, e *env) {
			_, err := e.matchmaker.SinglePlayer(ctx, "solo", "nightmare")
			assert.ErrorIs(t, err, apperr.ErrBadRequest)
			assert.Zero(t, e.count(t, `SELECT COUNT(*) FROM games`))
		},

		"single player while queued conflicts": func(t *testing.T, e *env) {
			_, err := e.matchmaker.EnterQueue(ctx, "solo", models.Mode1v1, "")
			require.NoError(t, err)

			_, err = e.matchmaker.SinglePlayer(ctx, "solo", "easy")
			assert.ErrorIs(t, err, apperr.ErrConflict)
		},
	})
}
