package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/hims-api/internal/models"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

type mockAuthRepo struct {
	users          map[string]*models.User
	findByEmailErr error
	created        []*models.User
	promoted       string
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.Email] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated-id"
	}
	m.users[user.Email] = user
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) UpdateCredentials(ctx context.Context, id, passwordHash string, role models.UserRole) error {
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			u.Role = role
			m.promoted = id
			return nil
		}
	}
	return sql.ErrNoRows
}

func newTestAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{Secret: "secret", Expiry: time.Hour, Issuer: "hims-api"})
}

func TestAuthServiceRegister(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Email: "Nurse@Example.com", Password: "secret1", FullName: "Nurse Joy"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.RoleStaff, res.User.Role)
	assert.Equal(t, "nurse@example.com", res.User.Email)
	require.Len(t, repo.created, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("secret1")))
}

func TestAuthServiceRegisterExisting(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "nurse@example.com"})
	svc := newTestAuthService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "nurse@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "not-an-email", Password: "123"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Len(t, appErr.Details, 2)
}

func TestAuthServiceLogin(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	repo := newMockAuthRepo(&models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Role: models.RoleAdmin})
	svc := newTestAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceMe(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "user@example.com", Role: models.RoleStaff})
	svc := newTestAuthService(repo)

	info, err := svc.Me(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", info.Email)

	_, err = svc.Me(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceEnsureAdmin(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u1", Email: "staff@example.com", Role: models.RoleStaff})
	svc := newTestAuthService(repo)

	created, err := svc.EnsureAdmin(context.Background(), models.RegisterRequest{Email: "admin@example.com", Password: "adminpass"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.RoleAdmin, repo.users["admin@example.com"].Role)

	created, err = svc.EnsureAdmin(context.Background(), models.RegisterRequest{Email: "staff@example.com", Password: "adminpass"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u1", repo.promoted)
	assert.Equal(t, models.RoleAdmin, repo.users["staff@example.com"].Role)
}

func TestValidateToken(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, err := svc.generateAccessToken(user, time.Now())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{Secret: "other", Issuer: "hims-api"})
	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo())
	token, err := svc.generateAccessToken(&models.User{ID: "u1"}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}
