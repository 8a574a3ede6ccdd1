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

// EnterResult is the outcome of a queue entry or lobby join.
type EnterResult struct {
	Status     string              `json:"status"`
	QueueID    string              `json:"queue_id"`
	GameID     string              `json:"game_id,omitempty"`
	Membership *models.QueuePlayer `json:"membership"`

	// players of the game created by this call, for the match event
	matched []string
}

// CancelResult is the outcome of CancelQueue.
type CancelResult struct {
	Status  string `json:"status"`
	QueueID string `json:"queue_id"`
}

// Matchmaker pairs users into games. Every operation runs in a single
// database transaction; a failure anywhere leaves no queue or game rows
// behind.
type Matchmaker struct {
	db     *sqlx.DB
	queues Queues
	games  Games
	events events.Publisher
}

func NewMatchmaker(db *sqlx.DB, queues Queues, games Games, pub events.Publisher) *Matchmaker {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Matchmaker{db: db, queues: queues, games: games, events: pub}
}

// EnterQueue puts userID in matchmaking for mode. A user who already has an
// active membership gets it back unchanged. Otherwise the user joins the
// oldest compatible open lobby, or a new one when none exists; the join that
// fills a lobby creates the game for every member.
func (m *Matchmaker) EnterQueue(ctx context.Context, userID, mode, difficulty string) (*EnterResult, error) {
	userID, err := validateUser(userID)
	if err != nil {
		return nil, err
	}
	size, difficulty, err := lobbySize(mode, difficulty)
	if err != nil {
		return nil, err
	}

	var res *EnterResult
	err = database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		existing, err := m.prepareEntry(ctx, tx, userID)
		if err != nil || existing != nil {
			res = existing
			return err
		}

		queueID, err := m.findOpenQueue(ctx, tx, userID, mode, size)
		if err != nil {
			return err
		}
		if queueID == "" {
			queue, member, err := m.queues.CreateWaitingEntry(ctx, tx, userID, mode, difficulty, size)
			if err != nil {
				return err
			}
			res = &EnterResult{Status: StatusWaiting, QueueID: queue.QueueID, Membership: member}
			return nil
		}

		res, err = m.join(ctx, tx, queueID, userID, mode, size)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.announce(ctx, res)
	log.Printf("[QUEUE] enter: user=%s mode=%s status=%s queue=%s game=%s", userID, mode, res.Status, res.QueueID, res.GameID)
	return res, nil
}

// prepareEntry locks the user and returns their active membership, if any.
// A user with an ongoing game and no membership may not queue.
func (m *Matchmaker) prepareEntry(ctx context.Context, tx *sqlx.Tx, userID string) (*EnterResult, error) {
	if err := m.queues.LockUser(ctx, tx, userID); err != nil {
		return nil, err
	}
	return m.activeEntry(ctx, tx, userID)
}

// activeEntry is prepareEntry for a caller that already holds the user lock.
func (m *Matchmaker) activeEntry(ctx context.Context, tx *sqlx.Tx, userID string) (*EnterResult, error) {
	_, active, err := m.queues.IsActive(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return membershipResult(active), nil
	}
	ongoing, err := m.games.GetOngoingByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if ongoing != nil {
		return nil, apperr.Conflict("user already has an ongoing game")
	}
	return nil, nil
}

// findOpenQueue picks the queue the user should join, or "" when a new one
// must be created. The chosen row stays locked until the transaction ends.
func (m *Matchmaker) findOpenQueue(ctx context.Context, tx *sqlx.Tx, userID, mode string, size int) (string, error) {
	if mode == models.Mode1v1 {
		candidates, err := m.queues.ListWaiting(ctx, tx, mode, userID, 1)
		if err != nil || len(candidates) == 0 {
			return "", err
		}
		return candidates[0].QueueID, nil
	}

	lobbies, err := m.queues.ListWaitingByGroupSize(ctx, tx, mode, userID, size, 1)
	if err != nil || len(lobbies) == 0 {
		return "", err
	}
	return lobbies[0].QueueID, nil
}

// join adds userID to queueID. When that fills the lobby, the game is
// created with every waiting member and the queue is promoted to matched.
func (m *Matchmaker) join(ctx context.Context, tx *sqlx.Tx, queueID, userID, mode string, size int) (*EnterResult, error) {
	member, err := m.queues.AddMember(ctx, tx, queueID, userID, models.QueueStatusWaiting)
	if err != nil {
		return nil, err
	}
	waiting, err := m.queues.CountWaiting(ctx, tx, queueID)
	if err != nil {
		return nil, err
	}
	if waiting > size {
		return nil, apperr.Conflict("lobby is full")
	}
	if waiting < size {
		return &EnterResult{Status: StatusWaiting, QueueID: queueID, Membership: member}, nil
	}

	members, err := m.queues.ListMembers(ctx, tx, queueID)
	if err != nil {
		return nil, err
	}
	players := make([]store.NewGamePlayer, 0, size)
	ids := make([]string, 0, size)
	for _, qp := range members {
		if qp.Status != models.QueueStatusWaiting {
			continue
		}
		players = append(players, store.NewGamePlayer{PlayerID: qp.UserID})
		ids = append(ids, qp.UserID)
	}

	game, err := m.games.CreateGame(ctx, tx, mode, players)
	if err != nil {
		return nil, err
	}
	promoted, err := m.queues.PromoteQueue(ctx, tx, queueID, game.GameID)
	if err != nil {
		return nil, err
	}
	if promoted != int64(len(players)) {
		return nil, apperr.Database(nil, "queue changed while pairing")
	}

	log.Printf("[MATCH] lobby %s filled: game=%s players=%v", queueID, game.GameID, ids)

	gameID := game.GameID
	member.Status = models.QueueStatusMatched
	member.GameID = &gameID
	return &EnterResult{Status: StatusMatched, QueueID: queueID, GameID: gameID, Membership: member, matched: ids}, nil
}

func (m *Matchmaker) announce(ctx context.Context, res *EnterResult) {
	if res == nil || len(res.matched) == 0 {
		return
	}
	m.events.Publish(ctx, events.Event{
		Type:    events.TypeMatchFound,
		GameID:  res.GameID,
		QueueID: res.QueueID,
		Players: res.matched,
	})
}

// CancelQueue removes userID's waiting membership. A user with nothing to
// cancel gets a not-found error; zero affected rows is never a success.
func (m *Matchmaker) CancelQueue(ctx context.Context, userID string) (*CancelResult, error) {
	userID, err := validateUser(userID)
	if err != nil {
		return nil, err
	}

	var queueID string
	err = database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		if err := m.queues.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		_, active, err := m.queues.IsActive(ctx, tx, userID)
		if err != nil {
			return err
		}
		if active == nil || active.Status != models.QueueStatusWaiting {
			return apperr.NotFound("user not found in queue")
		}
		// a join holding the queue finishes first; the membership may be matched by then
		if _, err := m.queues.LockQueue(ctx, tx, active.QueueID); err != nil {
			return err
		}

		n, err := m.queues.DeleteByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("user not found in queue")
		}
		queueID = active.QueueID
		_, err = m.queues.DeleteQueueIfEmpty(ctx, tx, queueID)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.events.Publish(ctx, events.Event{Type: events.TypeQueueCanceled, QueueID: queueID, Players: []string{userID}})
	log.Printf("[QUEUE] cancel: user=%s queue=%s", userID, queueID)
	return &CancelResult{Status: StatusCanceled, QueueID: queueID}, nil
}

// GetStatusQueue returns userID's most recent membership.
func (m *Matchmaker) GetStatusQueue(ctx context.Context, userID string) (*models.QueuePlayer, error) {
	userID, err := validateUser(userID)
	if err != nil {
		return nil, err
	}
	member, err := m.queues.GetStatus(ctx, m.db, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperr.NotFound("user not in queue")
	}
	return member, nil
}

// ListQueues returns one page of lobbies with their members.
func (m *Matchmaker) ListQueues(ctx context.Context, page, pageSize int) (*models.QueuePage, error) {
	return m.queues.PaginatedList(ctx, m.db, page, pageSize)
}

// GetGameID returns userID's ongoing game.
func (m *Matchmaker) GetGameID(ctx context.Context, userID string) (*models.Game, error) {
	userID, err := validateUser(userID)
	if err != nil {
		return nil, err
	}
	g, err := m.games.GetOngoingByUser(ctx, m.db, userID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("no ongoing game")
	}
	return g, nil
}

// GetGame returns a game with its participants.
func (m *Matchmaker) GetGame(ctx context.Context, gameID string) (*models.GameDetail, error) {
	if gameID == "" {
		return nil, apperr.BadRequest("game id required")
	}
	return m.games.GetByID(ctx, m.db, gameID)
}

func membershipResult(member *models.QueuePlayer) *EnterResult {
	res := &EnterResult{Status: member.Status, QueueID: member.QueueID, Membership: member}
	if member.GameID != nil {
		res.GameID = *member.GameID
	}
	return res
}
