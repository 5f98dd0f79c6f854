package db

import (
	"context"

	"campusmarket/models"

	sq "github.com/Masterminds/squirrel"
)

// Пользователи и профили исполнителей

func (s *Storage) CreateUser(ctx context.Context, u *models.User) error {
	query := `
        INSERT INTO users (name, email, phone, password_hash, role)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`
	err := s.ext.QueryRowxContext(ctx, query, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return conflict(err, "user with this email or phone already exists")
}

func (s *Storage) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	u := &models.User{}
	err := s.get(ctx, u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	err := s.get(ctx, u, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return u, nil
}

func (s *Storage) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	u := &models.User{}
	err := s.get(ctx, u, `SELECT * FROM users WHERE phone = $1`, phone)
	if err != nil {
		return nil, notFound(err, "user not found")
	}
	return u, nil
}

func (s *Storage) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	res, err := s.ext.ExecContext(ctx, query, passwordHash, userID)
	return affectedOrNotFound(res, err, "user not found")
}

// ListUsersWithPhone returns users that can receive SMS, optionally restricted to one role.
func (s *Storage) ListUsersWithPhone(ctx context.Context, role *models.Role) ([]models.User, error) {
	q := s.builder.Select("*").From("users").
		Where(sq.NotEq{"phone": nil}).
		OrderBy("id")
	if role != nil {
		q = q.Where(sq.Eq{"role": *role})
	}
	var users []models.User
	if err := s.selectBuilt(ctx, &users, q); err != nil {
		return nil, internal(err)
	}
	return users, nil
}

func (s *Storage) CreateProviderAccount(ctx context.Context, u *models.User, p *models.Provider, serviceIDs []int) error {
	return s.InTx(ctx, func(tx *Storage) error {
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		p.UserID = u.ID
		query := `
            INSERT INTO providers (user_id, address, latitude, longitude, college_id)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, completed_requests, rating, created_at, updated_at`
		err := tx.ext.QueryRowxContext(ctx, query, p.UserID, p.Address, p.Latitude, p.Longitude, p.CollegeID).
			Scan(&p.ID, &p.CompletedRequests, &p.Rating, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return internal(err)
		}
		for _, serviceID := range serviceIDs {
			_, err := tx.ext.ExecContext(ctx,
				`INSERT INTO provider_services (provider_id, service_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				p.ID, serviceID)
			if err != nil {
				return internal(err)
			}
		}
		return nil
	})
}

func (s *Storage) GetProvider(ctx context.Context, id int) (*models.Provider, error) {
	p := &models.Provider{}
	err := s.get(ctx, p, `SELECT * FROM providers WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "profile not found")
	}
	return p, nil
}

func (s *Storage) GetProviderByUserID(ctx context.Context, userID int) (*models.Provider, error) {
	p := &models.Provider{}
	err := s.get(ctx, p, `SELECT * FROM providers WHERE user_id = $1`, userID)
	if err != nil {
		return nil, notFound(err, "profile not found")
	}
	return p, nil
}

func (s *Storage) ListProviderServiceIDs(ctx context.Context, providerID int) ([]int, error) {
	var ids []int
	err := s.selectAll(ctx, &ids, `SELECT service_id FROM provider_services WHERE provider_id = $1 ORDER BY service_id`, providerID)
	if err != nil {
		return nil, internal(err)
	}
	return ids, nil
}

// FindMatchingProviders builds the nearby-provider filter for a freshly created request.
func (s *Storage) FindMatchingProviders(ctx context.Context, f models.ProviderFilter) ([]models.Provider, error) {
	q := s.builder.Select("p.*").From("providers p").OrderBy("p.id")

	if f.ServiceID != nil {
		q = q.Where(sq.Expr(
			"EXISTS (SELECT 1 FROM provider_services ps WHERE ps.provider_id = p.id AND ps.service_id = ?)",
			*f.ServiceID))
	}
	if f.CollegeID != nil {
		q = q.Where(sq.Or{sq.Eq{"p.college_id": *f.CollegeID}, sq.Eq{"p.college_id": nil}})
	}
	if f.Near != nil {
		q = q.Where(withinRadius("p.latitude", "p.longitude", *f.Near, f.RadiusKm))
	}

	var providers []models.Provider
	if err := s.selectBuilt(ctx, &providers, q); err != nil {
		return nil, internal(err)
	}
	return providers, nil
}
