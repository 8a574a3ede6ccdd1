package game_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/game"
	"github.com/playmatatu/arena/internal/models"
	"github.com/playmatatu/arena/internal/store"
	"github.com/playmatatu/arena/internal/testutil"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) ofType(typ string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// failingGames makes CreateGame fail after the rest of a pairing has run.
type failingGames struct {
	*store.GameStore
}

func (failingGames) CreateGame(context.Context, store.Querier, string, []store.NewGamePlayer) (*models.Game, error) {
	return nil, errors.New("insert failed")
}

type env struct {
	db         *sqlx.DB
	queues     *store.QueueStore
	games      *store.GameStore
	pub        *capturePublisher
	matchmaker *game.Matchmaker
	reconciler *game.Reconciler
	recorder   *game.Recorder
}

func newEnv(db *sqlx.DB) *env {
	queues := store.NewQueueStore()
	games := store.NewGameStore()
	pub := &capturePublisher{}
	return &env{
		db:         db,
		queues:     queues,
		games:      games,
		pub:        pub,
		matchmaker: game.NewMatchmaker(db, queues, games, pub),
		reconciler: game.NewReconciler(db, queues, games),
		recorder:   game.NewRecorder(db, queues, games, pub),
	}
}

// withDB starts one Postgres container for the test and gives each subtest a
// truncated schema and fresh services.
func withDB(t *testing.T, cases map[string]func(t *testing.T, e *env)) {
	db := testutil.NewDB(t)
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			testutil.Truncate(t, db)
			fn(t, newEnv(db))
		})
	}
}

func (e *env) waitingRows(t *testing.T, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT COUNT(*) FROM queue_players WHERE user_id = $1 AND status = 'waiting'`, userID))
	return n
}

func (e *env) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Get(&n, query, args...))
	return n
}
