// Package notifications publishes competition events and fans them out to live feed clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"ctfarena/internal/observability"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis channel carrying every feed event.
const EventsChannel = "ctf:events"

// Event types carried on EventsChannel.
const (
	EventSolve  = "solve"
	EventReview = "review"
	EventReset  = "reset"
)

// Event is the envelope written to Redis and forwarded to websocket clients verbatim.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SolveEvent announces a newly credited solve.
type SolveEvent struct {
	UserID         uint      `json:"user_id"`
	Username       string    `json:"username"`
	ChallengeID    uint      `json:"challenge_id"`
	ChallengeTitle string    `json:"challenge_title"`
	Points         int       `json:"points"`
	FirstBlood     bool      `json:"first_blood"`
	SolvedAt       time.Time `json:"solved_at"`
}

// ReviewEvent announces a submission reaching a terminal state.
type ReviewEvent struct {
	SubmissionID uint   `json:"submission_id"`
	AuthorID     uint   `json:"author_id"`
	Status       string `json:"status"`
	ChallengeID  *uint  `json:"challenge_id,omitempty"`
}

// Notifier provides helpers to publish events into Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishSolve sends a solve event to the feed channel.
func (n *Notifier) PublishSolve(ctx context.Context, event SolveEvent) error {
	return n.publish(ctx, EventSolve, event)
}

// PublishReview sends a review outcome to the feed channel.
func (n *Notifier) PublishReview(ctx context.Context, event ReviewEvent) error {
	return n.publish(ctx, EventReview, event)
}

// PublishReset tells feed clients that every standing was cleared.
func (n *Notifier) PublishReset(ctx context.Context) error {
	return n.publish(ctx, EventReset, struct{}{})
}

func (n *Notifier) publish(ctx context.Context, eventType string, payload interface{}) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, EventsChannel, data).Err()
}

func encodeEvent(eventType string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	data, err := json.Marshal(Event{Type: eventType, Payload: raw})
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return string(data), nil
}

// Subscribe listens on EventsChannel and calls onMessage for each payload
// until ctx is cancelled.
func (n *Notifier) Subscribe(ctx context.Context, onMessage func(payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, EventsChannel)
	// Wait for the subscription to be confirmed so publishes right after
	// Subscribe returns are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.ErrorContext(ctx, "panic in feed subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}
