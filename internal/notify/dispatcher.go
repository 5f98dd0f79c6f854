// Package notify is the single choke point for telling a user that something happened.
// A notification is persisted first; live WebSocket delivery and external channels are best-effort.
package notify

import (
	"context"

	"campusmarket/internal/metrics"
	"campusmarket/models"

	"github.com/rs/zerolog"
)

// Store persists notification rows. A transaction-bound store can be passed to Record.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Contacts resolves a user's phone for external channels.
type Contacts interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// Pusher delivers a live event to a connected user. It reports whether the user was connected.
type Pusher interface {
	Push(userID int, event Event) bool
}

// Event is the envelope written to WebSocket clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Note is what callers hand to the dispatcher.
type Note struct {
	Type            models.NotificationType
	Message         string
	RelatedEntityID *int
}

type Dispatcher struct {
	store    Store
	pusher   Pusher
	contacts Contacts
	external Channel
	types    map[models.NotificationType]bool
	log      zerolog.Logger
}

type Option func(*Dispatcher)

// WithExternal sends notifications of the given types over ch as well.
func WithExternal(ch Channel, contacts Contacts, types ...models.NotificationType) Option {
	return func(d *Dispatcher) {
		d.external = ch
		d.contacts = contacts
		for _, t := range types {
			d.types[t] = true
		}
	}
}

func NewDispatcher(store Store, pusher Pusher, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		pusher: pusher,
		types:  make(map[models.NotificationType]bool),
		log:    log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify persists a notification and delivers it.
func (d *Dispatcher) Notify(ctx context.Context, userID int, note Note) (*models.Notification, error) {
	n, err := d.Record(ctx, d.store, userID, note)
	if err != nil {
		return nil, err
	}
	d.Deliver(ctx, n)
	return n, nil
}

// Record persists a notification through store without delivering it.
// Callers inside a transaction deliver after commit.
func (d *Dispatcher) Record(ctx context.Context, store Store, userID int, note Note) (*models.Notification, error) {
	n := &models.Notification{
		UserID:          userID,
		Type:            note.Type,
		Message:         note.Message,
		RelatedEntityID: note.RelatedEntityID,
	}
	if err := store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Deliver pushes n to a live connection and, for external types, to the user's phone.
func (d *Dispatcher) Deliver(ctx context.Context, n *models.Notification) {
	if n == nil {
		return
	}
	d.Push(n.UserID, Event{Type: "notification", Data: n})

	if d.external == nil || !d.types[n.Type] {
		return
	}
	user, err := d.contacts.GetUserByID(ctx, n.UserID)
	if err != nil {
		d.log.Warn().Err(err).Int("user_id", n.UserID).Msg("cannot resolve contact for external notification")
		return
	}
	if user.Phone == nil || *user.Phone == "" {
		return
	}
	err = d.external.Send(ctx, *user.Phone, n.Message)
	metrics.RecordNotification(d.external.Name(), err == nil)
	if err != nil {
		d.log.Error().Err(err).Int("notification_id", n.ID).Str("channel", d.external.Name()).Msg("external notification failed")
	}
}

// Push sends a live event; silently a no-op when the user is not connected.
func (d *Dispatcher) Push(userID int, event Event) bool {
	if d.pusher == nil {
		return false
	}
	ok := d.pusher.Push(userID, event)
	if ok {
		metrics.RecordNotification("ws", true)
	}
	return ok
}
