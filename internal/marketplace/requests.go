package marketplace

import (
	"context"
	"fmt"
	"strings"

	"campusmarket/internal/apperr"
	"campusmarket/internal/metrics"
	"campusmarket/internal/notify"
	"campusmarket/models"
)

type CreateRequestInput struct {
	IsService       bool
	ServiceID       *int
	ProductName     *string
	Description     string
	DesiredPrice    float64
	Location        string
	Latitude        *float64
	Longitude       *float64
	CollegeFilterID *int
	AllowInterests  bool
}

func (in CreateRequestInput) validate() error {
	if in.IsService && in.ServiceID == nil {
		return apperr.Validation("serviceId is required for service requests")
	}
	if !in.IsService && (in.ProductName == nil || strings.TrimSpace(*in.ProductName) == "") {
		return apperr.Validation("productName is required for product requests")
	}
	if in.DesiredPrice <= 0 {
		return apperr.Validation("desiredPrice must be positive")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return apperr.Validation("latitude and longitude must be given together")
	}
	return nil
}

// CreateRequest stores an open request and notifies nearby providers.
func (s *Service) CreateRequest(ctx context.Context, clientID int, in CreateRequestInput) (*models.Request, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	req := &models.Request{
		UserID:          clientID,
		IsService:       in.IsService,
		Description:     in.Description,
		DesiredPrice:    in.DesiredPrice,
		Location:        in.Location,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		CollegeFilterID: in.CollegeFilterID,
		AllowInterests:  in.AllowInterests,
		Status:          models.RequestOpen,
	}
	if in.IsService {
		req.ServiceID = in.ServiceID
	} else {
		name := strings.TrimSpace(*in.ProductName)
		req.ProductName = &name
	}

	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	if err := s.matchProviders(ctx, req); err != nil {
		s.log.Error().Err(err).Int("request_id", req.ID).Msg("provider matching failed")
	}
	return req, nil
}

// matchProviders notifies providers near the request and places auto-bids for graduates of the requested college.
func (s *Service) matchProviders(ctx context.Context, req *models.Request) error {
	filter := models.ProviderFilter{
		CollegeID: req.CollegeFilterID,
		Near:      pointOf(req.Latitude, req.Longitude),
		RadiusKm:  s.radiusKm,
	}
	if req.IsService {
		filter.ServiceID = req.ServiceID
	}

	providers, err := s.store.FindMatchingProviders(ctx, filter)
	if err != nil {
		return err
	}

	for _, p := range providers {
		if p.UserID == req.UserID {
			continue
		}
		s.notify(ctx, p.UserID, notify.Note{
			Type:            models.NotificationNewRequest,
			Message:         fmt.Sprintf("New request near you: %s (%.2f)", req.Title(), req.DesiredPrice),
			RelatedEntityID: intPtr(req.ID),
		})

		if !s.autoBid || req.CollegeFilterID == nil || p.CollegeID == nil || *p.CollegeID != *req.CollegeFilterID {
			continue
		}
		bid := &models.Bid{
			RequestID:                    req.ID,
			ProviderID:                   p.ID,
			Price:                        req.DesiredPrice,
			IsGraduateOfRequestedCollege: true,
			Status:                       models.StatusPending,
		}
		if err := s.store.CreateBid(ctx, bid); err != nil {
			s.log.Error().Err(err).Int("request_id", req.ID).Int("provider_id", p.ID).Msg("auto-bid failed")
			continue
		}
		s.log.Debug().Int("request_id", req.ID).Int("provider_id", p.ID).Int("bid_id", bid.ID).Msg("auto-bid placed")
	}
	return nil
}

func (s *Service) ClientRequests(ctx context.Context, clientID int, page Page) ([]models.Request, error) {
	return s.store.ListRequestsByUser(ctx, clientID, page.Limit, page.Offset)
}

// BidsForRequest lists bids on one of the client's own requests.
func (s *Service) BidsForRequest(ctx context.Context, clientID, requestID int, page Page) ([]models.Bid, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != clientID {
		return nil, apperr.NotFound("Request not found")
	}
	return s.store.ListBidsForRequest(ctx, requestID, page.Limit, page.Offset)
}

type CreateBidInput struct {
	RequestID int
	Price     float64
	Message   *string
}

// CreateBid places a pending bid from the caller's provider profile.
func (s *Service) CreateBid(ctx context.Context, userID int, in CreateBidInput) (*models.Bid, error) {
	if in.Price <= 0 {
		return nil, apperr.Validation("price must be positive")
	}
	provider, err := s.store.GetProviderByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	req, err := s.store.GetRequest(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RequestOpen {
		return nil, apperr.InvalidState("Request is no longer open")
	}

	// computed once, at creation
	graduate := req.CollegeFilterID != nil && provider.CollegeID != nil && *req.CollegeFilterID == *provider.CollegeID

	bid := &models.Bid{
		RequestID:                    req.ID,
		ProviderID:                   provider.ID,
		Price:                        in.Price,
		Message:                      in.Message,
		IsGraduateOfRequestedCollege: graduate,
		Status:                       models.StatusPending,
	}
	if err := s.store.CreateBid(ctx, bid); err != nil {
		return nil, err
	}

	s.notify(ctx, req.UserID, notify.Note{
		Type:            models.NotificationNewBid,
		Message:         fmt.Sprintf("New bid of %.2f on %s", bid.Price, req.Title()),
		RelatedEntityID: intPtr(bid.ID),
	})
	return bid, nil
}

func (s *Service) ProviderBids(ctx context.Context, userID int, page Page) ([]models.Bid, error) {
	provider, err := s.store.GetProviderByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListBidsByProvider(ctx, provider.ID, page.Limit, page.Offset)
}

// AcceptBid accepts one bid, closes its request and rejects the competing bids in one transaction.
func (s *Service) AcceptBid(ctx context.Context, clientID, bidID int) (*models.Bid, error) {
	var (
		accepted *models.Bid
		notes    []*models.Notification
	)

	err := s.store.WithTx(ctx, func(q Queries) error {
		bid, err := q.GetBid(ctx, bidID)
		if err != nil {
			return notOwned(err, "Bid not found or unauthorized")
		}
		req, err := q.GetRequestForUpdate(ctx, bid.RequestID)
		if err != nil {
			return notOwned(err, "Bid not found or unauthorized")
		}
		if req.UserID != clientID {
			return apperr.NotFound("Bid not found or unauthorized")
		}
		if req.Status != models.RequestOpen {
			return apperr.InvalidState("Request is no longer open")
		}
		if bid.Status != models.StatusPending {
			return apperr.InvalidState("Bid is no longer pending")
		}

		if err := q.UpdateBidStatus(ctx, bid.ID, models.StatusAccepted); err != nil {
			return err
		}
		if err := q.UpdateRequestStatus(ctx, req.ID, models.RequestClosed); err != nil {
			return err
		}
		rejected, err := q.RejectOtherPendingBids(ctx, req.ID, bid.ID)
		if err != nil {
			return err
		}

		provider, err := q.GetProvider(ctx, bid.ProviderID)
		if err != nil {
			return err
		}
		toProvider, err := s.notifier.Record(ctx, q, provider.UserID, notify.Note{
			Type:            models.NotificationBidAccepted,
			Message:         fmt.Sprintf("Your bid of %.2f on %s was accepted", bid.Price, req.Title()),
			RelatedEntityID: intPtr(bid.ID),
		})
		if err != nil {
			return err
		}
		toClient, err := s.notifier.Record(ctx, q, clientID, notify.Note{
			Type:            models.NotificationBidConfirmed,
			Message:         fmt.Sprintf("You accepted a bid of %.2f on %s", bid.Price, req.Title()),
			RelatedEntityID: intPtr(bid.ID),
		})
		if err != nil {
			return err
		}

		bid.Status = models.StatusAccepted
		accepted = bid
		notes = []*models.Notification{toProvider, toClient}
		s.log.Info().Int("bid_id", bid.ID).Int("request_id", req.ID).Int64("rejected", rejected).Msg("bid accepted")
		return nil
	})
	metrics.RecordBidAcceptance(acceptOutcome(err))
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, notes)
	return accepted, nil
}

func acceptOutcome(err error) string {
	if err == nil {
		return "accepted"
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalidState:
		return "closed"
	case apperr.KindNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// notOwned hides whether a row is missing or belongs to someone else.
func notOwned(err error, message string) error {
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.NotFound(message)
	}
	return err
}

type FeedQuery struct {
	Lat              *float64
	Lng              *float64
	RangeKm          float64
	FilterByServices bool
	Page             Page
}

// FeedItem is an open request with its distance from the provider, when known.
type FeedItem struct {
	models.Request
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// ProviderRequests is the provider feed of open requests.
func (s *Service) ProviderRequests(ctx context.Context, userID int, q FeedQuery) ([]FeedItem, error) {
	if (q.Lat == nil) != (q.Lng == nil) {
		return nil, apperr.Validation("lat and lng must be given together")
	}
	filter := models.FeedFilter{
		Near:     pointOf(q.Lat, q.Lng),
		RadiusKm: q.RangeKm,
		Limit:    q.Page.Limit,
		Offset:   q.Page.Offset,
	}
	if filter.RadiusKm <= 0 {
		filter.RadiusKm = s.radiusKm
	}
	if q.FilterByServices {
		provider, err := s.store.GetProviderByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		ids, err := s.store.ListProviderServiceIDs(ctx, provider.ID)
		if err != nil {
			return nil, err
		}
		filter.OnlyServices = true
		filter.ServiceIDs = ids
	}

	requests, err := s.store.ListOpenRequests(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(requests))
	for _, r := range requests {
		item := FeedItem{Request: r}
		if filter.Near != nil {
			if p := pointOf(r.Latitude, r.Longitude); p != nil {
				d := HaversineKm(*filter.Near, *p)
				item.DistanceKm = &d
			}
		}
		items = append(items, item)
	}
	return items, nil
}
