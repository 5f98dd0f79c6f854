// Package ws keeps the live WebSocket connections and routes events to users and chat rooms.
package ws

import (
	"encoding/json"
	"sync"

	"campusmarket/internal/metrics"
	"campusmarket/internal/notify"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const sendBuffer = 64

// Client is one socket. userID is zero until the auth handshake succeeds.
type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan []byte

	// rooms is guarded by Registry.mu
	rooms map[int]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[int]struct{}),
		done:  make(chan struct{}),
	}
}

// UserID returns the authenticated user, or zero.
func (c *Client) UserID() int { return c.userID }

// Close stops the client. The write pump flushes queued frames and closes the socket.
// Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Closed is closed once the client is shut down.
func (c *Client) Closed() <-chan struct{} { return c.done }

// enqueue hands a frame to the write pump without blocking.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Registry maps users and rooms to live clients.
type Registry struct {
	mu    sync.RWMutex
	users map[int]*Client
	rooms map[int]map[*Client]struct{}
	log   zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		users: make(map[int]*Client),
		rooms: make(map[int]map[*Client]struct{}),
		log:   log,
	}
}

// Register binds c to userID. A previous connection of the same user is evicted and closed.
func (r *Registry) Register(userID int, c *Client) {
	r.mu.Lock()
	prev := r.users[userID]
	c.userID = userID
	r.users[userID] = c
	if prev != nil && prev != c {
		r.leaveAllLocked(prev)
	}
	r.mu.Unlock()

	if prev != nil && prev != c {
		r.log.Info().Int("user_id", userID).Msg("evicting previous connection")
		prev.Close()
		return
	}
	if prev == nil {
		metrics.WSConnected(1)
	}
}

// Unregister drops c from every room and removes the user entry if it still points at c.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveAllLocked(c)
	if c.userID != 0 && r.users[c.userID] == c {
		delete(r.users, c.userID)
		metrics.WSConnected(-1)
	}
}

func (r *Registry) leaveAllLocked(c *Client) {
	for roomID := range c.rooms {
		r.leaveLocked(roomID, c)
	}
}

func (r *Registry) leaveLocked(roomID int, c *Client) {
	members := r.rooms[roomID]
	delete(members, c)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	delete(c.rooms, roomID)
}

// Lookup returns the active client of a user.
func (r *Registry) Lookup(userID int) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.users[userID]
	return c, ok
}

func (r *Registry) Join(roomID int, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		r.rooms[roomID] = members
	}
	members[c] = struct{}{}
	c.rooms[roomID] = struct{}{}
}

func (r *Registry) Leave(roomID int, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(roomID, c)
}

// InRoom reports whether c joined roomID.
func (r *Registry) InRoom(roomID int, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][c]
	return ok
}

// Push sends event to the user's connection. It reports false when the user is offline.
func (r *Registry) Push(userID int, event notify.Event) bool {
	c, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	frame, err := json.Marshal(event)
	if err != nil {
		r.log.Error().Err(err).Str("type", event.Type).Msg("failed to encode event")
		return false
	}
	if !c.enqueue(frame) {
		r.log.Warn().Int("user_id", userID).Str("type", event.Type).Msg("dropping event for slow or closed connection")
		return false
	}
	return true
}

// Broadcast sends event to every client in a room and returns how many got it.
func (r *Registry) Broadcast(roomID int, event notify.Event) int {
	frame, err := json.Marshal(event)
	if err != nil {
		r.log.Error().Err(err).Str("type", event.Type).Msg("failed to encode event")
		return 0
	}

	r.mu.RLock()
	members := make([]*Client, 0, len(r.rooms[roomID]))
	for c := range r.rooms[roomID] {
		members = append(members, c)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

// Count returns the number of connected users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// RoomSize returns the number of clients in a room.
func (r *Registry) RoomSize(roomID int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
