package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published on the events channel
const (
	TypeMatchFound    = "match_found"
	TypeQueueCanceled = "queue_canceled"
	TypeQueueExpired  = "queue_expired"
	TypeGameCreated   = "game_created"
	TypeGameCompleted = "game_completed"
	TypeGameExpired   = "game_expired"
)

// Event is the payload consumed by the real-time layer.
type Event struct {
	Type     string    `json:"type"`
	GameID   string    `json:"game_id,omitempty"`
	QueueID  string    `json:"queue_id,omitempty"`
	Players  []string  `json:"players,omitempty"`
	WinnerID string    `json:"winner_id,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher delivers events after the transaction that produced them has
// committed. Delivery is best effort: a failed publish never undoes a write.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// RedisPublisher publishes events as JSON on a Redis channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.rdb == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[EVENTS] marshal %s failed: %v", ev.Type, err)
		return
	}
	n, err := p.rdb.Publish(ctx, p.channel, b).Result()
	if err != nil {
		log.Printf("[EVENTS] publish %s failed: game=%s queue=%s err=%v", ev.Type, ev.GameID, ev.QueueID, err)
		return
	}
	log.Printf("[EVENTS] published %s: game=%s queue=%s subscribers=%d", ev.Type, ev.GameID, ev.QueueID, n)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
