package db

import (
	"context"

	"campusmarket/models"
)

// Предложения исполнителей

func (s *Storage) CreateBid(ctx context.Context, b *models.Bid) error {
	query := `
        INSERT INTO bids (request_id, provider_id, price, message, is_graduate_of_requested_college, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query,
		b.RequestID, b.ProviderID, b.Price, b.Message, b.IsGraduateOfRequestedCollege, b.Status,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return internal(err)
}

func (s *Storage) GetBid(ctx context.Context, id int) (*models.Bid, error) {
	b := &models.Bid{}
	if err := s.get(ctx, b, `SELECT * FROM bids WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "Bid not found")
	}
	return b, nil
}

func (s *Storage) UpdateBidStatus(ctx context.Context, id int, status models.ProposalStatus) error {
	query := `UPDATE bids SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := s.ext.ExecContext(ctx, query, status, id)
	return affectedOrNotFound(res, err, "Bid not found")
}

// RejectOtherPendingBids rejects every pending bid on the request except the given one.
func (s *Storage) RejectOtherPendingBids(ctx context.Context, requestID, exceptBidID int) (int64, error) {
	query := `
        UPDATE bids SET status = 'rejected', updated_at = NOW()
        WHERE request_id = $1 AND id <> $2 AND status = 'pending'`
	res, err := s.ext.ExecContext(ctx, query, requestID, exceptBidID)
	if err != nil {
		return 0, internal(err)
	}
	n, err := res.RowsAffected()
	return n, internal(err)
}

func (s *Storage) ListBidsForRequest(ctx context.Context, requestID, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	query := `SELECT * FROM bids WHERE request_id = $1 ORDER BY price ASC, created_at ASC LIMIT $2 OFFSET $3`
	if err := s.selectAll(ctx, &bids, query, requestID, limit, offset); err != nil {
		return nil, internal(err)
	}
	return bids, nil
}

func (s *Storage) ListBidsByProvider(ctx context.Context, providerID, limit, offset int) ([]models.Bid, error) {
	var bids []models.Bid
	query := `SELECT * FROM bids WHERE provider_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	if err := s.selectAll(ctx, &bids, query, providerID, limit, offset); err != nil {
		return nil, internal(err)
	}
	return bids, nil
}
