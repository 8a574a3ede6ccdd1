package game

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/arena/internal/database"
	"github.com/playmatatu/arena/internal/events"
	"github.com/playmatatu/arena/internal/models"
)

// SweepResult counts what one janitor pass removed.
type SweepResult struct {
	Expired       int
	GamesExpired  int
	QueuesRemoved int64
}

// Janitor expires waiting memberships nobody picked up in time, closes games
// abandoned without a result and removes queues left without members. It
// never pairs anyone.
type Janitor struct {
	db         *sqlx.DB
	queues     Queues
	games      Games
	events     events.Publisher
	maxAge     time.Duration
	gameMaxAge time.Duration
	interval   time.Duration
	now        func() time.Time

	scheduler gocron.Scheduler
	stopOnce  sync.Once
}

// NewJanitor builds a janitor that expires waiting memberships older than
// maxAge and ongoing games older than gameMaxAge. A gameMaxAge of zero or
// less leaves games alone.
func NewJanitor(db *sqlx.DB, queues Queues, games Games, pub events.Publisher, maxAge, gameMaxAge, interval time.Duration) *Janitor {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Janitor{
		db:         db,
		queues:     queues,
		games:      games,
		events:     pub,
		maxAge:     maxAge,
		gameMaxAge: gameMaxAge,
		interval:   interval,
		now:        time.Now,
	}
}

// Start schedules Sweep every interval until ctx is canceled or Stop is
// called. A pass still running when the next one is due is skipped.
func (j *Janitor) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() {
			if _, err := j.Sweep(ctx); err != nil {
				log.Printf("[JANITOR] sweep failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}

	j.scheduler = sched
	sched.Start()
	log.Printf("[JANITOR] started (queues expire after %v, games after %v, every %v)", j.maxAge, j.gameMaxAge, j.interval)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop shuts the scheduler down. Safe to call more than once.
func (j *Janitor) Stop() {
	if j.scheduler == nil {
		return
	}
	j.stopOnce.Do(func() {
		if err := j.scheduler.Shutdown(); err != nil {
			log.Printf("[JANITOR] shutdown: %v", err)
		}
	})
}

// Sweep runs one expiry pass in a single transaction.
func (j *Janitor) Sweep(ctx context.Context) (*SweepResult, error) {
	now := j.now()

	var (
		expired []models.QueuePlayer
		stale   []expiredGame
		removed int64
	)
	err := database.WithTx(ctx, j.db, func(tx *sqlx.Tx) error {
		var err error
		expired, err = j.queues.ExpireWaiting(ctx, tx, now.Add(-j.maxAge))
		if err != nil {
			return err
		}
		if j.gameMaxAge > 0 {
			stale, err = j.expireGames(ctx, tx, now.Add(-j.gameMaxAge))
			if err != nil {
				return err
			}
		}
		removed, err = j.queues.DeleteEmptyQueues(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, qp := range expired {
		j.events.Publish(ctx, events.Event{Type: events.TypeQueueExpired, QueueID: qp.QueueID, Players: []string{qp.UserID}})
	}
	for _, g := range stale {
		j.events.Publish(ctx, events.Event{Type: events.TypeGameExpired, GameID: g.gameID, Players: g.players})
	}
	if len(expired) > 0 || len(stale) > 0 || removed > 0 {
		log.Printf("[JANITOR] expired %d waiting memberships and %d games, removed %d empty queues", len(expired), len(stale), removed)
	}
	return &SweepResult{Expired: len(expired), GamesExpired: len(stale), QueuesRemoved: removed}, nil
}

type expiredGame struct {
	gameID  string
	players []string
}

// expireGames closes ongoing games created before cutoff and releases the
// matched memberships that produced them, so their players can queue again.
func (j *Janitor) expireGames(ctx context.Context, tx *sqlx.Tx, cutoff time.Time) ([]expiredGame, error) {
	games, err := j.games.ExpireOngoing(ctx, tx, cutoff)
	if err != nil {
		return nil, err
	}
	out := make([]expiredGame, 0, len(games))
	for _, g := range games {
		participants, err := j.games.ListPlayers(ctx, tx, g.GameID)
		if err != nil {
			return nil, err
		}
		eg := expiredGame{gameID: g.GameID}
		for _, p := range participants {
			if !p.IsAI {
				eg.players = append(eg.players, p.PlayerID)
			}
		}
		if _, err := j.queues.DeleteByGameID(ctx, tx, g.GameID); err != nil {
			return nil, err
		}
		out = append(out, eg)
	}
	return out, nil
}
