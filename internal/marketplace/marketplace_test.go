package marketplace

import (
	"context"
	"sync"
	"testing"

	"campusmarket/internal/apperr"
	"campusmarket/internal/notify"
	"campusmarket/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	clientUserID   = 10
	providerUserID = 20
	providerID     = 5
)

type livePusher struct {
	mu     sync.Mutex
	online map[int]bool
	events map[int][]notify.Event
}

func (p *livePusher) Push(userID int, event notify.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.online[userID] {
		return false
	}
	p.events[userID] = append(p.events[userID], event)
	return true
}

func (p *livePusher) count(userID int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[userID])
}

func float(v float64) *float64 { return &v }
func str(v string) *string     { return &v }

func newTestService(t *testing.T, opts ...Option) (*Service, *memStore, *livePusher) {
	t.Helper()
	store := newMemStore()
	store.addProvider(models.Provider{ID: providerID, UserID: providerUserID, CollegeID: intPtr(3),
		Latitude: float(-1.2921), Longitude: float(36.8219)}, 1, 2)
	store.addProvider(models.Provider{ID: 6, UserID: 21,
		Latitude: float(-1.30), Longitude: float(36.80)}, 2)

	pusher := &livePusher{online: map[int]bool{clientUserID: true, providerUserID: true}, events: map[int][]notify.Event{}}
	dispatcher := notify.NewDispatcher(store, pusher, zerolog.Nop())
	return NewService(store, dispatcher, zerolog.Nop(), opts...), store, pusher
}

func createDeskRequest(t *testing.T, svc *Service) *models.Request {
	t.Helper()
	req, err := svc.CreateRequest(context.Background(), clientUserID, CreateRequestInput{
		ProductName:    str("Desk"),
		Description:    "Wooden study desk",
		DesiredPrice:   1500,
		Location:       "Main campus",
		AllowInterests: true,
	})
	require.NoError(t, err)
	return req
}

func TestAcceptBidClosesRequest(t *testing.T) {
	svc, store, pusher := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)
	require.Equal(t, models.RequestOpen, req.Status)

	winning, err := svc.CreateBid(ctx, providerUserID, CreateBidInput{RequestID: req.ID, Price: 1400})
	require.NoError(t, err)
	losing, err := svc.CreateBid(ctx, 21, CreateBidInput{RequestID: req.ID, Price: 1450})
	require.NoError(t, err)
	require.Len(t, store.notificationsFor(clientUserID), 2)

	accepted, err := svc.AcceptBid(ctx, clientUserID, winning.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusAccepted, accepted.Status)

	require.Equal(t, models.RequestClosed, store.requests[req.ID].Status)
	require.Equal(t, models.StatusAccepted, store.bids[winning.ID].Status)
	require.Equal(t, models.StatusRejected, store.bids[losing.ID].Status)

	providerNotes := store.notificationsFor(providerUserID)
	require.Equal(t, models.NotificationBidAccepted, providerNotes[len(providerNotes)-1].Type)
	clientNotes := store.notificationsFor(clientUserID)
	require.Equal(t, models.NotificationBidConfirmed, clientNotes[len(clientNotes)-1].Type)
	require.Equal(t, winning.ID, *clientNotes[len(clientNotes)-1].RelatedEntityID)

	// client: 2 new_bid + bid_confirmed; provider: new_request + bid_accepted
	require.Equal(t, 3, pusher.count(clientUserID))
	require.Equal(t, 2, pusher.count(providerUserID))

	_, err = svc.CreateBid(ctx, 21, CreateBidInput{RequestID: req.ID, Price: 1300})
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	require.Equal(t, "Request is no longer open", apperr.MessageOf(err))
}

func TestAcceptBidOwnership(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)
	bid, err := svc.CreateBid(ctx, providerUserID, CreateBidInput{RequestID: req.ID, Price: 1400})
	require.NoError(t, err)

	_, err = svc.AcceptBid(ctx, 99, bid.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
	require.Equal(t, "Bid not found or unauthorized", apperr.MessageOf(err))

	_, err = svc.AcceptBid(ctx, clientUserID, 12345)
	require.Equal(t, "Bid not found or unauthorized", apperr.MessageOf(err))

	require.Equal(t, models.StatusPending, store.bids[bid.ID].Status)
	require.Equal(t, models.RequestOpen, store.requests[req.ID].Status)
}

func TestAcceptBidRollsBackOnFailure(t *testing.T) {
	svc, store, pusher := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)
	bid, err := svc.CreateBid(ctx, providerUserID, CreateBidInput{RequestID: req.ID, Price: 1400})
	require.NoError(t, err)
	other, err := svc.CreateBid(ctx, 21, CreateBidInput{RequestID: req.ID, Price: 1450})
	require.NoError(t, err)
	pushedBefore := pusher.count(providerUserID)

	store.failNotifications = true
	_, err = svc.AcceptBid(ctx, clientUserID, bid.ID)
	require.Error(t, err)

	require.Equal(t, models.StatusPending, store.bids[bid.ID].Status)
	require.Equal(t, models.StatusPending, store.bids[other.ID].Status)
	require.Equal(t, models.RequestOpen, store.requests[req.ID].Status)
	require.Equal(t, pushedBefore, pusher.count(providerUserID))
}

func TestConcurrentAcceptHasSingleWinner(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)
	a, err := svc.CreateBid(ctx, providerUserID, CreateBidInput{RequestID: req.ID, Price: 1400})
	require.NoError(t, err)
	b, err := svc.CreateBid(ctx, 21, CreateBidInput{RequestID: req.ID, Price: 1350})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int{a.ID, b.ID} {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			_, errs[i] = svc.AcceptBid(ctx, clientUserID, id)
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.True(t, apperr.Is(err, apperr.KindInvalidState))
	}
	require.Equal(t, 1, wins)

	accepted := 0
	for _, bid := range store.bids {
		if bid.Status == models.StatusAccepted {
			accepted++
		}
	}
	require.Equal(t, 1, accepted)
}

func TestCreateRequestValidation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateRequestInput
	}{
		{"service without id", CreateRequestInput{IsService: true, DesiredPrice: 100}},
		{"product without name", CreateRequestInput{ProductName: str("  "), DesiredPrice: 100}},
		{"zero price", CreateRequestInput{ProductName: str("Lamp")}},
		{"half coordinates", CreateRequestInput{ProductName: str("Lamp"), DesiredPrice: 10, Latitude: float(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateRequest(ctx, clientUserID, tc.in)
			require.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
	require.Empty(t, store.requests)
}

func TestCreateRequestMatchesProviders(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.addProvider(models.Provider{ID: 7, UserID: 22, CollegeID: intPtr(4),
		Latitude: float(-1.29), Longitude: float(36.82)}, 2)
	store.addProvider(models.Provider{ID: 8, UserID: 23, CollegeID: intPtr(3),
		Latitude: float(-4.04), Longitude: float(39.67)}, 2)

	req, err := svc.CreateRequest(context.Background(), clientUserID, CreateRequestInput{
		IsService:       true,
		ServiceID:       intPtr(2),
		DesiredPrice:    800,
		Latitude:        float(-1.2864),
		Longitude:       float(36.8172),
		CollegeFilterID: intPtr(3),
	})
	require.NoError(t, err)

	require.Len(t, store.notificationsFor(providerUserID), 1)
	require.Len(t, store.notificationsFor(21), 1)
	require.Empty(t, store.notificationsFor(22), "other college")
	require.Empty(t, store.notificationsFor(23), "outside radius")

	var auto []models.Bid
	for _, b := range store.bids {
		auto = append(auto, b)
	}
	require.Len(t, auto, 1)
	require.Equal(t, providerID, auto[0].ProviderID)
	require.Equal(t, req.ID, auto[0].RequestID)
	require.Equal(t, 800.0, auto[0].Price)
	require.True(t, auto[0].IsGraduateOfRequestedCollege)
}

func TestAutoBidCanBeDisabled(t *testing.T) {
	svc, store, _ := newTestService(t, WithAutoBid(false))
	_, err := svc.CreateRequest(context.Background(), clientUserID, CreateRequestInput{
		ProductName:     str("Textbook"),
		DesiredPrice:    300,
		CollegeFilterID: intPtr(3),
	})
	require.NoError(t, err)
	require.Empty(t, store.bids)
	require.Len(t, store.notificationsFor(providerUserID), 1)
}

func TestCreateBidGraduateFlagAndProfile(t *testing.T) {
	svc, _, _ := newTestService(t, WithAutoBid(false))
	ctx := context.Background()
	req, err := svc.CreateRequest(ctx, clientUserID, CreateRequestInput{
		ProductName: str("Calculator"), DesiredPrice: 50, CollegeFilterID: intPtr(3),
	})
	require.NoError(t, err)

	grad, err := svc.CreateBid(ctx, providerUserID, CreateBidInput{RequestID: req.ID, Price: 45})
	require.NoError(t, err)
	require.True(t, grad.IsGraduateOfRequestedCollege)
	require.Equal(t, models.StatusPending, grad.Status)

	nonGrad, err := svc.CreateBid(ctx, 21, CreateBidInput{RequestID: req.ID, Price: 40})
	require.NoError(t, err)
	require.False(t, nonGrad.IsGraduateOfRequestedCollege)

	_, err = svc.CreateBid(ctx, clientUserID, CreateBidInput{RequestID: req.ID, Price: 40})
	require.Equal(t, "profile not found", apperr.MessageOf(err))

	_, err = svc.CreateBid(ctx, providerUserID, CreateBidInput{RequestID: 9999, Price: 40})
	require.Equal(t, "Request not found", apperr.MessageOf(err))
}

func TestBidsForRequestHidesForeignRequests(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)
	_, err := svc.CreateBid(ctx, providerUserID, CreateBidInput{RequestID: req.ID, Price: 1400})
	require.NoError(t, err)

	bids, err := svc.BidsForRequest(ctx, clientUserID, req.ID, Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, bids, 1)

	_, err = svc.BidsForRequest(ctx, 11, req.ID, Page{Limit: 10})
	require.True(t, apperr.Is(err, apperr.KindNotFound))
	require.Equal(t, "Request not found", apperr.MessageOf(err))
}

func TestExpressInterest(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)

	interest, err := svc.ExpressInterest(ctx, providerUserID, req.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, interest.Status)

	notes := store.notificationsFor(clientUserID)
	require.Equal(t, models.NotificationInterestReceived, notes[len(notes)-1].Type)

	_, err = svc.ExpressInterest(ctx, providerUserID, req.ID)
	require.True(t, apperr.Is(err, apperr.KindConflict))
	require.Len(t, store.interests, 1)

	bidsOnly, err := svc.CreateRequest(ctx, clientUserID, CreateRequestInput{ProductName: str("Chair"), DesiredPrice: 10})
	require.NoError(t, err)
	_, err = svc.ExpressInterest(ctx, providerUserID, bidsOnly.ID)
	require.True(t, apperr.Is(err, apperr.KindValidation))
	require.Equal(t, "Request does not accept interests", apperr.MessageOf(err))
}

func TestAcceptInterestCreatesThenReusesRoom(t *testing.T) {
	svc, store, pusher := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)
	interest, err := svc.ExpressInterest(ctx, providerUserID, req.ID)
	require.NoError(t, err)

	first, err := svc.AcceptInterest(ctx, clientUserID, interest.ID)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, models.StatusAccepted, first.Interest.Status)
	require.Equal(t, first.ChatRoom.ID, *first.Interest.ChatRoomID)
	require.Equal(t, clientUserID, first.ChatRoom.ClientID)
	require.Equal(t, providerUserID, first.ChatRoom.ProviderID)
	require.Len(t, store.messages, 1)
	require.True(t, store.messages[0].IsSystem)
	require.Nil(t, store.messages[0].SenderID)
	pushed := pusher.count(providerUserID)

	second, err := svc.AcceptInterest(ctx, clientUserID, interest.ID)
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.ChatRoom.ID, second.ChatRoom.ID)
	require.Len(t, store.rooms, 1)
	require.Len(t, store.messages, 1)
	require.Equal(t, pushed, pusher.count(providerUserID))

	_, err = svc.AcceptInterest(ctx, 11, interest.ID)
	require.Equal(t, "Interest not found or unauthorized", apperr.MessageOf(err))
}

func TestRejectInterest(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)
	interest, err := svc.ExpressInterest(ctx, providerUserID, req.ID)
	require.NoError(t, err)

	rejected, err := svc.RejectInterest(ctx, clientUserID, interest.ID, "found one already")
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, rejected.Status)
	require.Equal(t, "found one already", *rejected.Reason)

	notes := store.notificationsFor(providerUserID)
	last := notes[len(notes)-1]
	require.Equal(t, models.NotificationInterestRejected, last.Type)
	require.Contains(t, last.Message, "found one already")

	_, err = svc.AcceptInterest(ctx, clientUserID, interest.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	require.Empty(t, store.rooms)
}

func TestRejectAcceptedInterestFails(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)
	interest, err := svc.ExpressInterest(ctx, providerUserID, req.ID)
	require.NoError(t, err)
	_, err = svc.AcceptInterest(ctx, clientUserID, interest.ID)
	require.NoError(t, err)

	_, err = svc.RejectInterest(ctx, clientUserID, interest.ID, "")
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	require.Equal(t, models.StatusAccepted, store.interests[interest.ID].Status)
}

func TestWithdrawInterest(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	req := createDeskRequest(t, svc)

	pending, err := svc.ExpressInterest(ctx, providerUserID, req.ID)
	require.NoError(t, err)

	err = svc.WithdrawInterest(ctx, 21, pending.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, svc.WithdrawInterest(ctx, providerUserID, pending.ID))
	require.Empty(t, store.interests)
	notes := store.notificationsFor(clientUserID)
	require.Equal(t, models.NotificationInterestWithdrawn, notes[len(notes)-1].Type)

	again, err := svc.ExpressInterest(ctx, providerUserID, req.ID)
	require.NoError(t, err)
	_, err = svc.AcceptInterest(ctx, clientUserID, again.ID)
	require.NoError(t, err)

	err = svc.WithdrawInterest(ctx, providerUserID, again.ID)
	require.True(t, apperr.Is(err, apperr.KindInvalidState))
	require.Contains(t, store.interests, again.ID)

	mine, err := svc.ProviderInterests(ctx, providerUserID, Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestProviderRequestsFeed(t *testing.T) {
	svc, _, _ := newTestService(t, WithAutoBid(false))
	ctx := context.Background()

	near, err := svc.CreateRequest(ctx, clientUserID, CreateRequestInput{
		IsService: true, ServiceID: intPtr(1), DesiredPrice: 200,
		Latitude: float(-1.2864), Longitude: float(36.8172),
	})
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, clientUserID, CreateRequestInput{
		IsService: true, ServiceID: intPtr(9), DesiredPrice: 200,
		Latitude: float(-1.2870), Longitude: float(36.8180),
	})
	require.NoError(t, err)
	_, err = svc.CreateRequest(ctx, clientUserID, CreateRequestInput{
		ProductName: str("Bike"), DesiredPrice: 5000,
		Latitude: float(-4.04), Longitude: float(39.67),
	})
	require.NoError(t, err)

	lat, lng := -1.2921, 36.8219
	items, err := svc.ProviderRequests(ctx, providerUserID, FeedQuery{Lat: &lat, Lng: &lng, Page: Page{Limit: 20}})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		require.NotNil(t, it.DistanceKm)
		require.Less(t, *it.DistanceKm, 2.0)
	}

	items, err = svc.ProviderRequests(ctx, providerUserID, FeedQuery{Lat: &lat, Lng: &lng, FilterByServices: true, Page: Page{Limit: 20}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, near.ID, items[0].ID)

	all, err := svc.ProviderRequests(ctx, providerUserID, FeedQuery{Page: Page{Limit: 20}})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Nil(t, all[0].DistanceKm)
}

func TestHaversineKm(t *testing.T) {
	d := HaversineKm(models.GeoPoint{Lat: 0, Lng: 0}, models.GeoPoint{Lat: 0, Lng: 1})
	require.InDelta(t, 111.19, d, 0.01)
	require.Zero(t, HaversineKm(models.GeoPoint{Lat: 5, Lng: 5}, models.GeoPoint{Lat: 5, Lng: 5}))
}
