package auth

import (
	"context"
	"strings"

	"campusmarket/internal/apperr"
	"campusmarket/models"

	"github.com/rs/zerolog"
)

// Store is the persistence needed for accounts.
type Store interface {
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	// CreateProviderAccount inserts the user, its provider profile and offered services atomically.
	CreateProviderAccount(ctx context.Context, user *models.User, provider *models.Provider, serviceIDs []int) error
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Role     models.Role
	Provider *ProviderInput
}

type ProviderInput struct {
	Address    string
	Latitude   *float64
	Longitude  *float64
	CollegeID  *int
	ServiceIDs []int
}

// Session is returned by register and login.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Service struct {
	store  Store
	tokens *TokenManager
	log    zerolog.Logger
}

func NewService(store Store, tokens *TokenManager, log zerolog.Logger) *Service {
	return &Service{store: store, tokens: tokens, log: log}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	switch in.Role {
	case models.RoleClient, models.RoleServiceProvider:
	case models.RoleAdmin:
		return nil, apperr.Validation("admin accounts cannot be registered")
	default:
		return nil, apperr.Validation("role must be one of: client, service_provider")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("failed to register", err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         in.Role,
	}
	if phone := strings.TrimSpace(in.Phone); phone != "" {
		user.Phone = &phone
	}

	if in.Role == models.RoleServiceProvider {
		p := in.Provider
		if p == nil {
			p = &ProviderInput{}
		}
		provider := &models.Provider{
			Address:   p.Address,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			CollegeID: p.CollegeID,
		}
		err = s.store.CreateProviderAccount(ctx, user, provider, p.ServiceIDs)
	} else {
		err = s.store.CreateUser(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	return s.session(user)
}

func (s *Service) Me(ctx context.Context, userID int) (*models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	admin := &models.User{Name: "Administrator", Email: email, PasswordHash: hash, Role: models.RoleAdmin}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return err
	}
	s.log.Info().Str("email", email).Msg("bootstrap admin created")
	return nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperr.Internal("failed to issue token", err)
	}
	return &Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
