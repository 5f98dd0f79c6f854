package db

import (
	"context"

	"campusmarket/models"
)

// FindChatRoom looks a room up by request and the unordered pair of participants.
func (s *Storage) FindChatRoom(ctx context.Context, requestID, userA, userB int) (*models.ChatRoom, error) {
	c := &models.ChatRoom{}
	query := `
        SELECT * FROM chat_rooms
        WHERE request_id = $1
          AND ((client_id = $2 AND provider_id = $3) OR (client_id = $3 AND provider_id = $2))
        LIMIT 1`
	if err := s.get(ctx, c, query, requestID, userA, userB); err != nil {
		return nil, notFound(err, "Chat room not found")
	}
	return c, nil
}

func (s *Storage) CreateChatRoom(ctx context.Context, c *models.ChatRoom) error {
	query := `
        INSERT INTO chat_rooms (request_id, client_id, provider_id, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query, c.RequestID, c.ClientID, c.ProviderID, c.Status).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return conflict(err, "Chat room already exists")
}

func (s *Storage) GetChatRoom(ctx context.Context, id int) (*models.ChatRoom, error) {
	c := &models.ChatRoom{}
	if err := s.get(ctx, c, `SELECT * FROM chat_rooms WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "Chat room not found")
	}
	return c, nil
}

func (s *Storage) ListChatRoomsForUser(ctx context.Context, userID int) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	query := `SELECT * FROM chat_rooms WHERE client_id = $1 OR provider_id = $1 ORDER BY updated_at DESC, id DESC`
	if err := s.selectAll(ctx, &rooms, query, userID); err != nil {
		return nil, internal(err)
	}
	return rooms, nil
}

func (s *Storage) CreateMessage(ctx context.Context, m *models.Message) error {
	query := `
        INSERT INTO messages (room_id, sender_id, content, is_system)
        VALUES ($1, $2, $3, $4)
        RETURNING id, is_read, created_at`
	err := s.ext.QueryRowxContext(ctx, query, m.RoomID, m.SenderID, m.Content, m.IsSystem).
		Scan(&m.ID, &m.IsRead, &m.CreatedAt)
	if err != nil {
		return internal(err)
	}
	_, err = s.ext.ExecContext(ctx, `UPDATE chat_rooms SET updated_at = NOW() WHERE id = $1`, m.RoomID)
	return internal(err)
}

func (s *Storage) ListMessages(ctx context.Context, roomID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	query := `SELECT * FROM messages WHERE room_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`
	if err := s.selectAll(ctx, &messages, query, roomID, limit, offset); err != nil {
		return nil, internal(err)
	}
	return messages, nil
}

// MarkMessageRead marks a message read on behalf of a room participant who did not send it.
func (s *Storage) MarkMessageRead(ctx context.Context, messageID, readerID int) (*models.Message, error) {
	m := &models.Message{}
	query := `
        UPDATE messages m SET is_read = TRUE
        FROM chat_rooms c
        WHERE m.id = $1
          AND c.id = m.room_id
          AND (c.client_id = $2 OR c.provider_id = $2)
          AND (m.sender_id IS NULL OR m.sender_id <> $2)
        RETURNING m.*`
	if err := s.get(ctx, m, query, messageID, readerID); err != nil {
		return nil, notFound(err, "Message not found")
	}
	return m, nil
}
