package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"campusmarket/internal/apperr"
	"campusmarket/internal/auth"
	"campusmarket/internal/notify"
	"campusmarket/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	opTimeout      = 5 * time.Second
)

// Store is the persistence the socket protocol needs.
type Store interface {
	ListUnreadNotifications(ctx context.Context, userID int) ([]models.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID int, ids []int) error
	GetChatRoom(ctx context.Context, id int) (*models.ChatRoom, error)
	CreateMessage(ctx context.Context, m *models.Message) error
	MarkMessageRead(ctx context.Context, messageID, readerID int) (*models.Message, error)
}

type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// inbound is every frame a client may send.
type inbound struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	RoomID    int    `json:"roomId,omitempty"`
	Content   string `json:"content,omitempty"`
	MessageID int    `json:"messageId,omitempty"`
}

type Hub struct {
	registry *Registry
	store    Store
	verifier Verifier
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHub(registry *Registry, store Store, verifier Verifier, log zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		store:    store,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection and runs the socket until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := newClient(conn)
	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *Client) {
	defer func() {
		h.registry.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Int("user_id", c.userID).Msg("websocket read error")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(c, "invalid message")
			continue
		}
		if !h.handle(c, msg) {
			return
		}
	}
}

// handle processes one frame. It returns false when the connection must be closed.
func (h *Hub) handle(c *Client, msg inbound) bool {
	if msg.Type == "auth" {
		return h.authenticate(c, msg.Token)
	}
	if c.userID == 0 {
		h.sendError(c, "not authenticated")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch msg.Type {
	case "join_room":
		h.joinRoom(ctx, c, msg.RoomID)
	case "leave_room":
		h.registry.Leave(msg.RoomID, c)
	case "send_message":
		h.sendMessage(ctx, c, msg.RoomID, msg.Content)
	case "mark_read":
		h.markRead(ctx, c, msg.MessageID)
	default:
		h.sendError(c, "unknown message type")
	}
	return true
}

func (h *Hub) authenticate(c *Client, token string) bool {
	claims, err := h.verifier.Verify(token)
	if err != nil {
		h.sendError(c, apperr.MessageOf(err))
		return false
	}
	if c.userID != 0 && c.userID != claims.UserID {
		h.registry.Unregister(c)
	}
	h.registry.Register(claims.UserID, c)
	h.log.Debug().Int("user_id", claims.UserID).Msg("websocket authenticated")

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	unread, err := h.store.ListUnreadNotifications(ctx, claims.UserID)
	if err != nil {
		h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("failed to load unread notifications")
		return true
	}
	if unread == nil {
		unread = []models.Notification{}
	}
	h.send(c, notify.Event{Type: "initial_notifications", Data: unread})

	// помечаем прочитанными ровно то, что отправили
	ids := make([]int, len(unread))
	for i, n := range unread {
		ids[i] = n.ID
	}
	if len(ids) > 0 {
		if err := h.store.MarkNotificationsRead(ctx, claims.UserID, ids); err != nil {
			h.log.Error().Err(err).Int("user_id", claims.UserID).Msg("failed to mark initial notifications read")
		}
	}
	return true
}

func (h *Hub) joinRoom(ctx context.Context, c *Client, roomID int) {
	room, err := h.store.GetChatRoom(ctx, roomID)
	if err != nil || !room.HasParticipant(c.userID) {
		h.sendError(c, "Chat room not found")
		return
	}
	h.registry.Join(roomID, c)
	h.send(c, notify.Event{Type: "room_message", Data: map[string]interface{}{"roomId": roomID, "event": "joined"}})
}

func (h *Hub) sendMessage(ctx context.Context, c *Client, roomID int, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		h.sendError(c, "message content is required")
		return
	}
	if !h.registry.InRoom(roomID, c) {
		h.sendError(c, "join the room first")
		return
	}
	room, err := h.store.GetChatRoom(ctx, roomID)
	if err != nil {
		h.sendError(c, apperr.MessageOf(err))
		return
	}
	if room.Status != models.ChatRoomActive {
		h.sendError(c, "chat room is closed")
		return
	}

	sender := c.userID
	m := &models.Message{RoomID: roomID, SenderID: &sender, Content: content}
	if err := h.store.CreateMessage(ctx, m); err != nil {
		h.log.Error().Err(err).Int("room_id", roomID).Msg("failed to store chat message")
		h.sendError(c, "failed to send message")
		return
	}

	h.registry.Broadcast(roomID, notify.Event{Type: "room_message", Data: m})

	peer := room.Peer(c.userID)
	if pc, ok := h.registry.Lookup(peer); ok && !h.registry.InRoom(roomID, pc) {
		h.registry.Push(peer, notify.Event{Type: "new_message", Data: m})
	}
}

func (h *Hub) markRead(ctx context.Context, c *Client, messageID int) {
	m, err := h.store.MarkMessageRead(ctx, messageID, c.userID)
	if err != nil {
		h.sendError(c, apperr.MessageOf(err))
		return
	}
	if m.SenderID != nil {
		h.registry.Push(*m.SenderID, notify.Event{Type: "message_read", Data: map[string]int{
			"messageId": m.ID,
			"roomId":    m.RoomID,
			"readerId":  c.userID,
		}})
	}
}

func (h *Hub) send(c *Client, event notify.Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("type", event.Type).Msg("failed to encode event")
		return
	}
	c.enqueue(frame)
}

func (h *Hub) sendError(c *Client, message string) {
	h.send(c, notify.Event{Type: "error", Data: map[string]string{"error": message}})
}

// writePump is the only goroutine writing to the socket.
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			h.flush(c)
			return
		}
	}
}

// flush writes frames queued before Close, such as the error that precedes a rejected handshake.
func (h *Hub) flush(c *Client) {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
