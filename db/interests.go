package db

import (
	"context"

	"campusmarket/models"
)

func (s *Storage) CreateInterest(ctx context.Context, i *models.Interest) error {
	query := `
        INSERT INTO interests (request_id, provider_id, status)
        VALUES ($1, $2, $3)
        RETURNING id, created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query, i.RequestID, i.ProviderID, i.Status).
		Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
	return conflict(err, "Interest already exists")
}

func (s *Storage) GetInterest(ctx context.Context, id int) (*models.Interest, error) {
	i := &models.Interest{}
	if err := s.get(ctx, i, `SELECT * FROM interests WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "Interest not found")
	}
	return i, nil
}

func (s *Storage) GetInterestByProviderAndRequest(ctx context.Context, providerID, requestID int) (*models.Interest, error) {
	i := &models.Interest{}
	query := `SELECT * FROM interests WHERE provider_id = $1 AND request_id = $2`
	if err := s.get(ctx, i, query, providerID, requestID); err != nil {
		return nil, notFound(err, "Interest not found")
	}
	return i, nil
}

// GetInterestForOwner loads an interest only when its request belongs to clientID, and locks the row.
func (s *Storage) GetInterestForOwner(ctx context.Context, interestID, clientID int) (*models.Interest, error) {
	i := &models.Interest{}
	query := `
        SELECT i.* FROM interests i
        WHERE i.id = $1
          AND EXISTS (SELECT 1 FROM requests r WHERE r.id = i.request_id AND r.user_id = $2)
        FOR UPDATE`
	if err := s.get(ctx, i, query, interestID, clientID); err != nil {
		return nil, notFound(err, "Interest not found or unauthorized")
	}
	return i, nil
}

func (s *Storage) UpdateInterest(ctx context.Context, i *models.Interest) error {
	query := `
        UPDATE interests SET status = $1, reason = $2, chat_room_id = $3, updated_at = NOW()
        WHERE id = $4
        RETURNING updated_at`
	err := s.ext.QueryRowxContext(ctx, query, i.Status, i.Reason, i.ChatRoomID, i.ID).Scan(&i.UpdatedAt)
	return notFound(err, "Interest not found")
}

func (s *Storage) DeleteInterest(ctx context.Context, id int) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM interests WHERE id = $1`, id)
	return affectedOrNotFound(res, err, "Interest not found")
}

func (s *Storage) ListInterestsByProvider(ctx context.Context, providerID, limit, offset int) ([]models.Interest, error) {
	var interests []models.Interest
	query := `SELECT * FROM interests WHERE provider_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	if err := s.selectAll(ctx, &interests, query, providerID, limit, offset); err != nil {
		return nil, internal(err)
	}
	return interests, nil
}
