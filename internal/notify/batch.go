package notify

import (
	"context"
	"time"

	"campusmarket/internal/metrics"
	"campusmarket/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Outgoing is one external message.
type Outgoing struct {
	UserID int
	To     string
	Body   string
}

// Failure records a message the channel refused.
type Failure struct {
	UserID int    `json:"userId"`
	To     string `json:"to"`
	Error  string `json:"error"`
}

// Batcher sends messages one by one, spaced by a fixed delay so the provider does not throttle us.
type Batcher struct {
	channel Channel
	delay   time.Duration
	log     zerolog.Logger
}

func NewBatcher(ch Channel, delay time.Duration, log zerolog.Logger) *Batcher {
	return &Batcher{channel: ch, delay: delay, log: log}
}

// Send delivers every message sequentially and returns how many succeeded.
// It stops early only when ctx is cancelled.
func (b *Batcher) Send(ctx context.Context, msgs []Outgoing) (int, []Failure, error) {
	limit := rate.Inf
	if b.delay > 0 {
		limit = rate.Every(b.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	sent := 0
	var failures []Failure
	for _, m := range msgs {
		if err := limiter.Wait(ctx); err != nil {
			return sent, failures, err
		}
		err := b.channel.Send(ctx, m.To, m.Body)
		metrics.RecordNotification(b.channel.Name(), err == nil)
		if err != nil {
			b.log.Warn().Err(err).Int("user_id", m.UserID).Msg("batch message failed")
			failures = append(failures, Failure{UserID: m.UserID, To: m.To, Error: err.Error()})
			continue
		}
		sent++
	}
	return sent, failures, nil
}

// Recipients lists users reachable by SMS.
type Recipients interface {
	ListUsersWithPhone(ctx context.Context, role *models.Role) ([]models.User, error)
}

// BroadcastResult summarises an admin broadcast.
type BroadcastResult struct {
	Recipients int       `json:"recipients"`
	Sent       int       `json:"sent"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Broadcaster sends one text to every user with a phone, optionally within one role.
type Broadcaster struct {
	recipients Recipients
	batcher    *Batcher
}

func NewBroadcaster(recipients Recipients, batcher *Batcher) *Broadcaster {
	return &Broadcaster{recipients: recipients, batcher: batcher}
}

func (b *Broadcaster) Broadcast(ctx context.Context, role *models.Role, message string) (*BroadcastResult, error) {
	users, err := b.recipients.ListUsersWithPhone(ctx, role)
	if err != nil {
		return nil, err
	}
	msgs := make([]Outgoing, 0, len(users))
	for _, u := range users {
		if u.Phone == nil || *u.Phone == "" {
			continue
		}
		msgs = append(msgs, Outgoing{UserID: u.ID, To: *u.Phone, Body: message})
	}
	sent, failures, err := b.batcher.Send(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &BroadcastResult{Recipients: len(msgs), Sent: sent, Failures: failures}, nil
}
