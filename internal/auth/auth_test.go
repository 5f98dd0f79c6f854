package auth

import (
	"context"
	"testing"
	"time"

	"campusmarket/internal/apperr"
	"campusmarket/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	byID      map[int]*models.User
	providers map[int]*models.Provider
	services  map[int][]int
	nextID    int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int]*models.User{}, providers: map[int]*models.Provider{}, services: map[int][]int{}}
}

func (m *memUsers) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user not found")
}

func (m *memUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (m *memUsers) CreateUser(ctx context.Context, user *models.User) error {
	if _, err := m.GetUserByEmail(ctx, user.Email); err == nil {
		return apperr.Conflict("user already exists")
	}
	m.nextID++
	user.ID = m.nextID
	m.byID[user.ID] = user
	return nil
}

func (m *memUsers) CreateProviderAccount(ctx context.Context, user *models.User, provider *models.Provider, serviceIDs []int) error {
	if err := m.CreateUser(ctx, user); err != nil {
		return err
	}
	provider.ID = user.ID + 100
	provider.UserID = user.ID
	m.providers[user.ID] = provider
	m.services[provider.ID] = serviceIDs
	return nil
}

func newTestService() (*Service, *memUsers) {
	store := newMemUsers()
	tokens := NewTokenManager("test-secret", time.Hour, "campusmarket")
	return NewService(store, tokens, zerolog.Nop()), store
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour, "campusmarket")

	token, err := tm.Issue(&models.User{ID: 10, Role: models.RoleClient})
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	require.Equal(t, 10, claims.UserID)
	require.Equal(t, models.RoleClient, claims.Role)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	token, err := NewTokenManager("one", time.Hour, "campusmarket").Issue(&models.User{ID: 1, Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour, "campusmarket").Verify(token)
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestVerifyRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute, "campusmarket")
	tm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := tm.Issue(&models.User{ID: 1, Role: models.RoleClient})
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.Verify(token)
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
	require.Equal(t, "token expired", apperr.MessageOf(err))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("secret", time.Hour, "campusmarket").Verify("not.a.token")
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)
	require.True(t, CheckPassword(hash, "hunter22"))
	require.False(t, CheckPassword(hash, "hunter23"))
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{
		Name: "Ada", Email: " Ada@Campus.edu ", Password: "password1", Phone: "+254700000001", Role: models.RoleClient,
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, "ada@campus.edu", session.User.Email)
	require.Equal(t, "+254700000001", *session.User.Phone)

	login, err := svc.Login(ctx, "ADA@campus.edu", "password1")
	require.NoError(t, err)
	require.Equal(t, session.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "ada@campus.edu", "wrong")
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.Login(ctx, "nobody@campus.edu", "password1")
	require.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestRegisterProviderCreatesProfile(t *testing.T) {
	svc, store := newTestService()
	college := 3

	session, err := svc.Register(context.Background(), RegisterInput{
		Name: "Bob", Email: "bob@campus.edu", Password: "password1", Role: models.RoleServiceProvider,
		Provider: &ProviderInput{Address: "Hostel B", CollegeID: &college, ServiceIDs: []int{1, 2}},
	})
	require.NoError(t, err)

	p := store.providers[session.User.ID]
	require.NotNil(t, p)
	require.Equal(t, 3, *p.CollegeID)
	require.Equal(t, []int{1, 2}, store.services[p.ID])
}

func TestRegisterRejectsAdminAndDuplicates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Eve", Email: "eve@campus.edu", Password: "password1", Role: models.RoleAdmin})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	in := RegisterInput{Name: "Eve", Email: "eve@campus.edu", Password: "password1", Role: models.RoleClient}
	_, err = svc.Register(ctx, in)
	require.NoError(t, err)
	_, err = svc.Register(ctx, in)
	require.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "root@campus.edu", "password1"))
	require.NoError(t, svc.EnsureAdmin(ctx, "root@campus.edu", "password1"))
	require.Len(t, store.byID, 1)

	session, err := svc.Login(ctx, "root@campus.edu", "password1")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, session.User.Role)
}
