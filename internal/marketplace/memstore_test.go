package marketplace

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"campusmarket/internal/apperr"
	"campusmarket/models"
)

// memStore is an in-memory Store. WithTx serializes transactions and restores a snapshot on error.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID           int
	providers        map[int]models.Provider
	providerServices map[int][]int
	requests         map[int]models.Request
	bids             map[int]models.Bid
	interests        map[int]models.Interest
	rooms            map[int]models.ChatRoom
	messages         []models.Message
	notifications    []models.Notification

	failNotifications bool
}

func newMemStore() *memStore {
	return &memStore{
		nextID:           100,
		providers:        map[int]models.Provider{},
		providerServices: map[int][]int{},
		requests:         map[int]models.Request{},
		bids:             map[int]models.Bid{},
		interests:        map[int]models.Interest{},
		rooms:            map[int]models.ChatRoom{},
	}
}

type snapshot struct {
	nextID        int
	requests      map[int]models.Request
	bids          map[int]models.Bid
	interests     map[int]models.Interest
	rooms         map[int]models.ChatRoom
	messages      []models.Message
	notifications []models.Notification
}

func copyMap[T any](m map[int]T) map[int]T {
	out := make(map[int]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *memStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := snapshot{
		nextID:        m.nextID,
		requests:      copyMap(m.requests),
		bids:          copyMap(m.bids),
		interests:     copyMap(m.interests),
		rooms:         copyMap(m.rooms),
		messages:      append([]models.Message(nil), m.messages...),
		notifications: append([]models.Notification(nil), m.notifications...),
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.nextID = snap.nextID
		m.requests = snap.requests
		m.bids = snap.bids
		m.interests = snap.interests
		m.rooms = snap.rooms
		m.messages = snap.messages
		m.notifications = snap.notifications
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

func (m *memStore) addProvider(p models.Provider, services ...int) {
	m.providers[p.ID] = p
	m.providerServices[p.ID] = services
}

func (m *memStore) GetProvider(ctx context.Context, id int) (*models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, apperr.NotFound("Provider not found")
	}
	return &p, nil
}

func (m *memStore) GetProviderByUserID(ctx context.Context, userID int) (*models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if p.UserID == userID {
			p := p
			return &p, nil
		}
	}
	return nil, apperr.NotFound("profile not found")
}

func (m *memStore) ListProviderServiceIDs(ctx context.Context, providerID int) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.providerServices[providerID], nil
}

func (m *memStore) FindMatchingProviders(ctx context.Context, f models.ProviderFilter) ([]models.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Provider
	for _, p := range m.providers {
		if f.ServiceID != nil && !contains(m.providerServices[p.ID], *f.ServiceID) {
			continue
		}
		if f.CollegeID != nil && p.CollegeID != nil && *p.CollegeID != *f.CollegeID {
			continue
		}
		if f.Near != nil {
			loc := pointOf(p.Latitude, p.Longitude)
			if loc == nil || HaversineKm(*f.Near, *loc) > f.RadiusKm {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateRequest(ctx context.Context, r *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id()
	r.CreatedAt = time.Now()
	m.requests[r.ID] = *r
	return nil
}

func (m *memStore) GetRequest(ctx context.Context, id int) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, apperr.NotFound("Request not found")
	}
	return &r, nil
}

func (m *memStore) GetRequestForUpdate(ctx context.Context, id int) (*models.Request, error) {
	return m.GetRequest(ctx, id)
}

func (m *memStore) UpdateRequestStatus(ctx context.Context, id int, status models.RequestStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return apperr.NotFound("Request not found")
	}
	r.Status = status
	m.requests[id] = r
	return nil
}

func (m *memStore) ListRequestsByUser(ctx context.Context, userID, limit, offset int) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Request
	for _, r := range m.requests {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return window(out, limit, offset), nil
}

func (m *memStore) ListOpenRequests(ctx context.Context, f models.FeedFilter) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Request
	for _, r := range m.requests {
		if r.Status != models.RequestOpen {
			continue
		}
		if f.OnlyServices && (!r.IsService || r.ServiceID == nil || !contains(f.ServiceIDs, *r.ServiceID)) {
			continue
		}
		if f.Near != nil {
			loc := pointOf(r.Latitude, r.Longitude)
			if loc == nil || HaversineKm(*f.Near, *loc) > f.RadiusKm {
				continue
			}
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return window(out, f.Limit, f.Offset), nil
}

func (m *memStore) CreateBid(ctx context.Context, b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.id()
	b.CreatedAt = time.Now()
	m.bids[b.ID] = *b
	return nil
}

func (m *memStore) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return nil, apperr.NotFound("Bid not found")
	}
	return &b, nil
}

func (m *memStore) UpdateBidStatus(ctx context.Context, id int, status models.ProposalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return apperr.NotFound("Bid not found")
	}
	if status == models.StatusAccepted {
		for _, other := range m.bids {
			if other.RequestID == b.RequestID && other.ID != id && other.Status == models.StatusAccepted {
				return apperr.Conflict("Request already has an accepted bid")
			}
		}
	}
	b.Status = status
	m.bids[id] = b
	return nil
}

func (m *memStore) RejectOtherPendingBids(ctx context.Context, requestID, exceptBidID int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, b := range m.bids {
		if b.RequestID == requestID && id != exceptBidID && b.Status == models.StatusPending {
			b.Status = models.StatusRejected
			m.bids[id] = b
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListBidsForRequest(ctx context.Context, requestID, limit, offset int) ([]models.Bid, error) {
	return m.listBids(func(b models.Bid) bool { return b.RequestID == requestID }, limit, offset), nil
}

func (m *memStore) ListBidsByProvider(ctx context.Context, providerID, limit, offset int) ([]models.Bid, error) {
	return m.listBids(func(b models.Bid) bool { return b.ProviderID == providerID }, limit, offset), nil
}

func (m *memStore) listBids(keep func(models.Bid) bool, limit, offset int) []models.Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Bid
	for _, b := range m.bids {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return window(out, limit, offset)
}

func (m *memStore) CreateInterest(ctx context.Context, i *models.Interest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.interests {
		if other.RequestID == i.RequestID && other.ProviderID == i.ProviderID {
			return apperr.Conflict("Interest already exists")
		}
	}
	i.ID = m.id()
	i.CreatedAt = time.Now()
	m.interests[i.ID] = *i
	return nil
}

func (m *memStore) GetInterest(ctx context.Context, id int) (*models.Interest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.interests[id]
	if !ok {
		return nil, apperr.NotFound("Interest not found")
	}
	return &i, nil
}

func (m *memStore) GetInterestByProviderAndRequest(ctx context.Context, providerID, requestID int) (*models.Interest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range m.interests {
		if i.ProviderID == providerID && i.RequestID == requestID {
			i := i
			return &i, nil
		}
	}
	return nil, apperr.NotFound("Interest not found")
}

func (m *memStore) GetInterestForOwner(ctx context.Context, interestID, clientID int) (*models.Interest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.interests[interestID]
	if !ok || m.requests[i.RequestID].UserID != clientID {
		return nil, apperr.NotFound("Interest not found or unauthorized")
	}
	return &i, nil
}

func (m *memStore) UpdateInterest(ctx context.Context, i *models.Interest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.interests[i.ID]; !ok {
		return apperr.NotFound("Interest not found")
	}
	m.interests[i.ID] = *i
	return nil
}

func (m *memStore) DeleteInterest(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.interests[id]; !ok {
		return apperr.NotFound("Interest not found")
	}
	delete(m.interests, id)
	return nil
}

func (m *memStore) ListInterestsByProvider(ctx context.Context, providerID, limit, offset int) ([]models.Interest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Interest
	for _, i := range m.interests {
		if i.ProviderID == providerID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	return window(out, limit, offset), nil
}

func (m *memStore) FindChatRoom(ctx context.Context, requestID, userA, userB int) (*models.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.RequestID != nil && *r.RequestID == requestID && r.HasParticipant(userA) && r.HasParticipant(userB) {
			r := r
			return &r, nil
		}
	}
	return nil, apperr.NotFound("Chat room not found")
}

func (m *memStore) CreateChatRoom(ctx context.Context, c *models.ChatRoom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	c.CreatedAt = time.Now()
	m.rooms[c.ID] = *c
	return nil
}

func (m *memStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.id()
	msg.CreatedAt = time.Now()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNotifications {
		return apperr.Internal("database error", errors.New("notifications table unavailable"))
	}
	n.ID = m.id()
	n.CreatedAt = time.Now()
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *memStore) notificationsFor(userID int) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
