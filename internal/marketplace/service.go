// Package marketplace implements the request, bid and interest lifecycles.
package marketplace

import (
	"context"

	"campusmarket/db"
	"campusmarket/internal/notify"
	"campusmarket/models"

	"github.com/rs/zerolog"
)

// Queries is the storage surface used by the lifecycles. *db.Storage implements it.
type Queries interface {
	GetProvider(ctx context.Context, id int) (*models.Provider, error)
	GetProviderByUserID(ctx context.Context, userID int) (*models.Provider, error)
	ListProviderServiceIDs(ctx context.Context, providerID int) ([]int, error)
	FindMatchingProviders(ctx context.Context, f models.ProviderFilter) ([]models.Provider, error)

	CreateRequest(ctx context.Context, r *models.Request) error
	GetRequest(ctx context.Context, id int) (*models.Request, error)
	GetRequestForUpdate(ctx context.Context, id int) (*models.Request, error)
	UpdateRequestStatus(ctx context.Context, id int, status models.RequestStatus) error
	ListRequestsByUser(ctx context.Context, userID, limit, offset int) ([]models.Request, error)
	ListOpenRequests(ctx context.Context, f models.FeedFilter) ([]models.Request, error)

	CreateBid(ctx context.Context, b *models.Bid) error
	GetBid(ctx context.Context, id int) (*models.Bid, error)
	UpdateBidStatus(ctx context.Context, id int, status models.ProposalStatus) error
	RejectOtherPendingBids(ctx context.Context, requestID, exceptBidID int) (int64, error)
	ListBidsForRequest(ctx context.Context, requestID, limit, offset int) ([]models.Bid, error)
	ListBidsByProvider(ctx context.Context, providerID, limit, offset int) ([]models.Bid, error)

	CreateInterest(ctx context.Context, i *models.Interest) error
	GetInterest(ctx context.Context, id int) (*models.Interest, error)
	GetInterestByProviderAndRequest(ctx context.Context, providerID, requestID int) (*models.Interest, error)
	GetInterestForOwner(ctx context.Context, interestID, clientID int) (*models.Interest, error)
	UpdateInterest(ctx context.Context, i *models.Interest) error
	DeleteInterest(ctx context.Context, id int) error
	ListInterestsByProvider(ctx context.Context, providerID, limit, offset int) ([]models.Interest, error)

	FindChatRoom(ctx context.Context, requestID, userA, userB int) (*models.ChatRoom, error)
	CreateChatRoom(ctx context.Context, c *models.ChatRoom) error
	CreateMessage(ctx context.Context, m *models.Message) error

	CreateNotification(ctx context.Context, n *models.Notification) error
}

// Store adds transactions to Queries.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}

type sqlStore struct {
	*db.Storage
}

// NewStore adapts the SQL storage.
func NewStore(s *db.Storage) Store {
	return sqlStore{Storage: s}
}

func (s sqlStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	return s.Storage.InTx(ctx, func(tx *db.Storage) error {
		return fn(tx)
	})
}

// Notifier is the part of the dispatcher the lifecycles use.
type Notifier interface {
	Notify(ctx context.Context, userID int, note notify.Note) (*models.Notification, error)
	Record(ctx context.Context, store notify.Store, userID int, note notify.Note) (*models.Notification, error)
	Deliver(ctx context.Context, n *models.Notification)
}

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

type Service struct {
	store    Store
	notifier Notifier
	log      zerolog.Logger

	autoBid  bool
	radiusKm float64
}

type Option func(*Service)

// WithAutoBid toggles the automatic bid for providers from the requested college.
func WithAutoBid(enabled bool) Option {
	return func(s *Service) { s.autoBid = enabled }
}

// WithMatchRadius sets the matching and default feed radius.
func WithMatchRadius(km float64) Option {
	return func(s *Service) {
		if km > 0 {
			s.radiusKm = km
		}
	}
}

func NewService(store Store, notifier Notifier, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		log:      log,
		autoBid:  true,
		radiusKm: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) notify(ctx context.Context, userID int, note notify.Note) {
	if _, err := s.notifier.Notify(ctx, userID, note); err != nil {
		s.log.Error().Err(err).Int("user_id", userID).Str("type", string(note.Type)).Msg("failed to create notification")
	}
}

func (s *Service) deliver(ctx context.Context, notes []*models.Notification) {
	for _, n := range notes {
		s.notifier.Deliver(ctx, n)
	}
}

func intPtr(v int) *int { return &v }
