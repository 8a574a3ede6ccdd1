package game

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playmatatu/arena/internal/apperr"
	"github.com/playmatatu/arena/internal/database"
	"github.com/playmatatu/arena/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes and refuses to hash it
const maxLobbyPassword = 72

// LobbyResult is the outcome of creating a named lobby.
type LobbyResult struct {
	Status          string              `json:"status"`
	QueueID         string              `json:"queue_id"`
	Name            string              `json:"name"`
	Mode            string              `json:"mode"`
	RequiredPlayers int                 `json:"required_players"`
	Membership      *models.QueuePlayer `json:"membership"`
}

// CreateQueue opens a named lobby with userID waiting in it. An empty
// password leaves the lobby open to anyone who knows the name.
func (m *Matchmaker) CreateQueue(ctx context.Context, userID, mode, difficulty, name, password string) (*LobbyResult, error) {
	userID, err := validateUser(userID)
	if err != nil {
		return nil, err
	}
	size, difficulty, err := lobbySize(mode, difficulty)
	if err != nil {
		return nil, err
	}
	name, err = validateLobbyName(name)
	if err != nil {
		return nil, err
	}

	if len(password) > maxLobbyPassword {
		return nil, apperr.BadRequest("password must be at most %d bytes", maxLobbyPassword)
	}

	var passwordHash string
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash lobby password: %w", err)
		}
		passwordHash = string(hashed)
	}

	var res *LobbyResult
	err = database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		existing, err := m.prepareEntry(ctx, tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("user is already in a queue")
		}

		queue, member, err := m.queues.CreateNamedQueue(ctx, tx, userID, mode, difficulty, size, name, passwordHash)
		if err != nil {
			return err
		}
		res = &LobbyResult{
			Status:          StatusWaiting,
			QueueID:         queue.QueueID,
			Name:            name,
			Mode:            mode,
			RequiredPlayers: size,
			Membership:      member,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[QUEUE] lobby created: user=%s name=%q mode=%s size=%d queue=%s private=%v", userID, name, mode, size, res.QueueID, passwordHash != "")
	return res, nil
}

// JoinQueue adds userID to the named lobby. A user who already has an active
// membership gets it back unchanged.
func (m *Matchmaker) JoinQueue(ctx context.Context, userID, name, password string) (*EnterResult, error) {
	userID, err := validateUser(userID)
	if err != nil {
		return nil, err
	}
	name, err = validateLobbyName(name)
	if err != nil {
		return nil, err
	}

	var res *EnterResult
	err = database.WithTx(ctx, m.db, func(tx *sqlx.Tx) error {
		// user before queue, the order every queue writer locks in
		if err := m.queues.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		queue, err := m.queues.LockQueueByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if queue == nil {
			return apperr.NotFound("queue not found")
		}
		if queue.PasswordHash.Valid {
			if bcrypt.CompareHashAndPassword([]byte(queue.PasswordHash.String), []byte(password)) != nil {
				return apperr.BadRequest("wrong password")
			}
		}

		existing, err := m.activeEntry(ctx, tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			res = existing
			return nil
		}

		members, err := m.queues.ListMembers(ctx, tx, queue.QueueID)
		if err != nil {
			return err
		}
		waiting := 0
		for _, qp := range members {
			if qp.Status == models.QueueStatusMatched {
				return apperr.Conflict("lobby has already started")
			}
			waiting++
		}
		if waiting == 0 {
			return apperr.NotFound("queue not found")
		}
		if waiting >= queue.RequiredPlayers {
			return apperr.Conflict("lobby is full")
		}

		res, err = m.join(ctx, tx, queue.QueueID, userID, queue.Mode, queue.RequiredPlayers)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.announce(ctx, res)
	log.Printf("[QUEUE] lobby join: user=%s name=%q status=%s queue=%s game=%s", userID, name, res.Status, res.QueueID, res.GameID)
	return res, nil
}
