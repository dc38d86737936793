package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*models.User // by username
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (s *fakeUserStore) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return apperr.New(apperr.KindConflict, "username or email already taken")
	}
	s.nextID++
	u.ID = s.nextID
	u.CreatedAt = time.Now().UTC()
	cp := *u
	s.users[u.Username] = &cp
	return nil
}

func (s *fakeUserStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.Newf(apperr.KindNotFound, "user %s not found", username)
}

func (s *fakeUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.Newf(apperr.KindNotFound, "user %d not found", id)
}

func (s *fakeUserStore) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return apperr.Newf(apperr.KindNotFound, "user %d not found", id)
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]int64
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]int64)}
}

func (s *fakeSessions) Put(_ context.Context, id string, userID int64, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = userID
	return nil
}

func (s *fakeSessions) Resolve(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID, ok := s.sessions[id]; ok {
		return userID, nil
	}
	return 0, apperr.New(apperr.KindNotFound, "session not found")
}

func (s *fakeSessions) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *fakeSessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func newTestService() (*Service, *fakeUserStore, *fakeSessions) {
	users := newFakeUserStore()
	sessions := newFakeSessions()
	return NewService(users, sessions, "test-secret", time.Hour), users, sessions
}

func TestRegisterIssuesVerifiableToken(t *testing.T) {
	ctx := context.Background()
	svc, users, _ := newTestService()

	user, token, err := svc.Register(ctx, "alice", "hunter22", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, int64(1), user.ID)

	userID, err := svc.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	// The plaintext never reaches the store.
	stored := users.users["alice"]
	assert.NotEqual(t, "hunter22", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, _, err := svc.Register(ctx, "alice", "hunter22", "alice@example.com")
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, "alice", "other", "alice2@example.com")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	_, _, err := svc.Register(ctx, "alice", "hunter22", "alice@example.com")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, "invalid credentials", apperr.Message(err))

	// Unknown user reads the same as a wrong password.
	_, _, err = svc.Login(ctx, "mallory", "hunter22")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, "invalid credentials", apperr.Message(err))
}

func TestLogoutRevokesOnlyThatSession(t *testing.T) {
	ctx := context.Background()
	svc, _, sessions := newTestService()
	_, _, err := svc.Register(ctx, "alice", "hunter22", "alice@example.com")
	require.NoError(t, err)

	_, first, err := svc.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)
	_, second, err := svc.Login(ctx, "alice", "hunter22")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.Equal(t, 3, sessions.count()) // register + two logins

	require.NoError(t, svc.Logout(ctx, first))

	_, err = svc.VerifyToken(ctx, first)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Equal(t, "session expired", apperr.Message(err))

	_, err = svc.VerifyToken(ctx, second)
	assert.NoError(t, err)
}

func TestLogoutGarbageTokenIsNoop(t *testing.T) {
	svc, _, _ := newTestService()
	assert.NoError(t, svc.Logout(context.Background(), "not-a-jwt"))
}

func TestVerifyTokenRejectsForgedSignature(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	claims := jwt.MapClaims{
		"user_id": int64(1),
		"jti":     "forged",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	_, err = svc.VerifyToken(ctx, forged)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserStore()
	sessions := newFakeSessions()
	svc := NewService(users, sessions, "test-secret", -time.Minute)

	_, token, err := svc.Register(ctx, "alice", "hunter22", "alice@example.com")
	require.NoError(t, err)

	_, err = svc.VerifyToken(ctx, token)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	user, _, err := svc.Register(ctx, "alice", "hunter22", "alice@example.com")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, "wrong", "newpass99")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "hunter22", "newpass99"))

	_, _, err = svc.Login(ctx, "alice", "hunter22")
	assert.Error(t, err)
	_, _, err = svc.Login(ctx, "alice", "newpass99")
	assert.NoError(t, err)
}
