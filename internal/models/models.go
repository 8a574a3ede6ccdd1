package models

import (
	"database/sql"
	"time"
)

// Queue membership statuses
const (
	QueueStatusWaiting = "waiting"
	QueueStatusMatched = "matched"
)

// Game statuses
const (
	GameStatusOngoing   = "ongoing"
	GameStatusCompleted = "completed"
)

// Game modes
const (
	Mode1v1        = "1v1"
	ModeTournament = "tournament"
	ModeSingle     = "single"
)

// Queue is a matchmaking lobby instance
type Queue struct {
	QueueID         string         `db:"queue_id" json:"queue_id"`
	Mode            string         `db:"mode" json:"mode"`
	Difficulty      string         `db:"difficulty" json:"difficulty"`
	RequiredPlayers int            `db:"required_players" json:"required_players"`
	Name            sql.NullString `db:"name" json:"-"`
	PasswordHash    sql.NullString `db:"password_hash" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// QueuePlayer is one user's membership in one Queue
type QueuePlayer struct {
	ID       int64     `db:"id" json:"-"`
	QueueID  string    `db:"queue_id" json:"queue_id"`
	UserID   string    `db:"user_id" json:"user_id"`
	Status   string    `db:"status" json:"status"`
	GameID   *string   `db:"game_id" json:"game_id,omitempty"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// QueueSummary is a Queue with its current number of waiting players
type QueueSummary struct {
	Queue
	WaitingCount int `db:"waiting_count" json:"waiting_count"`
}

// QueueListing is a Queue with its members, for lobby/spectator listings
type QueueListing struct {
	QueueID         string        `json:"queue_id"`
	Mode            string        `json:"mode"`
	Difficulty      string        `json:"difficulty"`
	Name            string        `json:"name,omitempty"`
	Private         bool          `json:"private"`
	RequiredPlayers int           `json:"required_players"`
	CreatedAt       time.Time     `json:"created_at"`
	Players         []QueuePlayer `json:"players"`
}

// Pagination describes one page of a listing
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// QueuePage is a page of queue listings
type QueuePage struct {
	Queues     []QueueListing `json:"queues"`
	Pagination Pagination     `json:"pagination"`
}

// Game is an authoritative match record
type Game struct {
	GameID    string     `db:"game_id" json:"game_id"`
	Mode      string     `db:"mode" json:"mode"`
	Status    string     `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	EndTime   *time.Time `db:"end_time" json:"end_time"`
}

// GamePlayer is a participant's stake in a Game
type GamePlayer struct {
	GameID   string `db:"game_id" json:"game_id"`
	PlayerID string `db:"player_id" json:"player_id"`
	IsAI     bool   `db:"is_ai" json:"is_ai"`
	Score    *int   `db:"score" json:"score"`
	IsWinner *bool  `db:"is_winner" json:"is_winner"`
}

// GameDetail is a Game with its participants
type GameDetail struct {
	Game
	Players []GamePlayer `json:"players"`
}
