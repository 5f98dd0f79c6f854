package db

import (
	"context"

	"campusmarket/models"

	sq "github.com/Masterminds/squirrel"
)

// Заявки клиентов

func (s *Storage) CreateRequest(ctx context.Context, r *models.Request) error {
	query := `
        INSERT INTO requests (user_id, is_service, service_id, product_name, description, desired_price,
                              location, latitude, longitude, college_filter_id, allow_interests, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query,
		r.UserID, r.IsService, r.ServiceID, r.ProductName, r.Description, r.DesiredPrice,
		r.Location, r.Latitude, r.Longitude, r.CollegeFilterID, r.AllowInterests, r.Status,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return internal(err)
}

func (s *Storage) GetRequest(ctx context.Context, id int) (*models.Request, error) {
	r := &models.Request{}
	if err := s.get(ctx, r, `SELECT * FROM requests WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "Request not found")
	}
	return r, nil
}

// GetRequestForUpdate locks the request row until the surrounding transaction ends.
// Concurrent bid acceptances on one request are serialized on this lock.
func (s *Storage) GetRequestForUpdate(ctx context.Context, id int) (*models.Request, error) {
	r := &models.Request{}
	if err := s.get(ctx, r, `SELECT * FROM requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, notFound(err, "Request not found")
	}
	return r, nil
}

func (s *Storage) UpdateRequestStatus(ctx context.Context, id int, status models.RequestStatus) error {
	query := `UPDATE requests SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := s.ext.ExecContext(ctx, query, status, id)
	return affectedOrNotFound(res, err, "Request not found")
}

func (s *Storage) ListRequestsByUser(ctx context.Context, userID, limit, offset int) ([]models.Request, error) {
	var requests []models.Request
	query := `SELECT * FROM requests WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	if err := s.selectAll(ctx, &requests, query, userID, limit, offset); err != nil {
		return nil, internal(err)
	}
	return requests, nil
}

// ListOpenRequests returns the provider feed.
func (s *Storage) ListOpenRequests(ctx context.Context, f models.FeedFilter) ([]models.Request, error) {
	q := s.builder.Select("*").From("requests").
		Where(sq.Eq{"status": models.RequestOpen}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(f.Limit)).
		Offset(uint64(f.Offset))

	if f.OnlyServices {
		if len(f.ServiceIDs) == 0 {
			return []models.Request{}, nil
		}
		q = q.Where(sq.Eq{"is_service": true, "service_id": f.ServiceIDs})
	}
	if f.Near != nil {
		q = q.Where(withinRadius("latitude", "longitude", *f.Near, f.RadiusKm))
	}

	var requests []models.Request
	if err := s.selectBuilt(ctx, &requests, q); err != nil {
		return nil, internal(err)
	}
	return requests, nil
}
