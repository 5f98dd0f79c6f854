package db

import (
	"context"

	"campusmarket/models"

	"github.com/lib/pq"
)

// Уведомления

func (s *Storage) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
        INSERT INTO notifications (user_id, type, message, related_entity_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, is_read, created_at`
	err := s.ext.QueryRowxContext(ctx, query, n.UserID, n.Type, n.Message, n.RelatedEntityID).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	return internal(err)
}

func (s *Storage) ListNotifications(ctx context.Context, userID int, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var out []models.Notification
	query := `
        SELECT * FROM notifications
        WHERE user_id = $1 AND (NOT $2 OR is_read = FALSE)
        ORDER BY created_at DESC, id DESC
        LIMIT $3 OFFSET $4`
	if err := s.selectAll(ctx, &out, query, userID, unreadOnly, limit, offset); err != nil {
		return nil, internal(err)
	}
	return out, nil
}

func (s *Storage) ListUnreadNotifications(ctx context.Context, userID int) ([]models.Notification, error) {
	var out []models.Notification
	query := `SELECT * FROM notifications WHERE user_id = $1 AND is_read = FALSE ORDER BY created_at ASC, id ASC`
	if err := s.selectAll(ctx, &out, query, userID); err != nil {
		return nil, internal(err)
	}
	return out, nil
}

func (s *Storage) CountUnreadNotifications(ctx context.Context, userID int) (int, error) {
	var count int
	err := s.get(ctx, &count, `SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID)
	return count, internal(err)
}

func (s *Storage) MarkNotificationRead(ctx context.Context, id, userID int) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`
	res, err := s.ext.ExecContext(ctx, query, id, userID)
	return affectedOrNotFound(res, err, "Notification not found")
}

func (s *Storage) MarkAllNotificationsRead(ctx context.Context, userID int) (int64, error) {
	res, err := s.ext.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, internal(err)
	}
	n, err := res.RowsAffected()
	return n, internal(err)
}

// MarkNotificationsRead marks exactly the given notifications read.
func (s *Storage) MarkNotificationsRead(ctx context.Context, userID int, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND id = ANY($2)`
	_, err := s.ext.ExecContext(ctx, query, userID, pq.Array(ids))
	return internal(err)
}
