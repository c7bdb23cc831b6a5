package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/models"
	"backend/internal/repository"
)

type fakeAuthRepo struct {
	users map[string]*models.User
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{users: make(map[string]*models.User)}
}

func (r *fakeAuthRepo) CreateUser(user *models.User) error {
	if _, ok := r.users[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	user.ID = int64(len(r.users) + 1)
	r.users[user.Email] = user
	return nil
}

func (r *fakeAuthRepo) GetUserByEmail(email string) (*models.User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func TestHashVerifyPassword(t *testing.T) {
	s := &authService{logger: zap.NewNop()}

	hash, err := s.hashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, verifyPassword(hash, "correct horse battery staple"))
	assert.False(t, verifyPassword(hash, "wrong password"))

	// Fresh salt every call.
	hash2, err := s.hashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
	assert.True(t, verifyPassword(hash2, "correct horse battery staple"))
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.False(t, verifyPassword("", "pw"))
	assert.False(t, verifyPassword("not a hash", "pw"))
	assert.False(t, verifyPassword("$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "pw"))
	assert.False(t, verifyPassword("$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA", "pw"))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), "test-secret", zap.NewNop())

	user, err := svc.Register("mod@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "mod@example.com", user.Email)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	_, err = svc.Register("mod@example.com", "other")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	tokenString, expires, err := svc.Login("mod@example.com", "hunter22")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expires, time.Minute)

	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return svc.JWTSecret(), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "mod@example.com", claims.Email)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), "test-secret", zap.NewNop())

	_, _, err := svc.Login("ghost@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Register("mod@example.com", "hunter22")
	require.NoError(t, err)
	_, _, err = svc.Login("mod@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
