// Package auth issues and verifies bearer tokens for the web API and
// the realtime hub. Tokens are HS256 JWTs paired with a session
// record, so logout revokes a token before its expiry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

const sessionKeyPrefix = "session:"

// UserStore is the account persistence the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
}

// Sessions tracks which issued tokens are still live.
type Sessions interface {
	Put(ctx context.Context, id string, userID int64, ttl time.Duration) error
	// Resolve returns the session's user, or a not-found error when
	// the session is missing or expired.
	Resolve(ctx context.Context, id string) (int64, error)
	Revoke(ctx context.Context, id string) error
}

// RedisSessions keeps session records in Redis with a TTL.
type RedisSessions struct {
	rdb *redis.Client
}

func NewRedisSessions(rdb *redis.Client) *RedisSessions {
	return &RedisSessions{rdb: rdb}
}

func (s *RedisSessions) Put(ctx context.Context, id string, userID int64, ttl time.Duration) error {
	return s.rdb.Set(ctx, sessionKeyPrefix+id, userID, ttl).Err()
}

func (s *RedisSessions) Resolve(ctx context.Context, id string) (int64, error) {
	val, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return 0, apperr.New(apperr.KindNotFound, "session not found")
	}
	if err != nil {
		return 0, fmt.Errorf("session lookup: %w", err)
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt session record: %w", err)
	}
	return userID, nil
}

func (s *RedisSessions) Revoke(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}

// Service handles registration, login, and token verification.
type Service struct {
	users    UserStore
	sessions Sessions
	secret   []byte
	ttl      time.Duration
}

// NewService wires the auth service. ttl bounds both the JWT expiry
// and the session record.
func NewService(users UserStore, sessions Sessions, secret string, ttl time.Duration) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
	}
}

// Register creates an account and logs it in.
func (s *Service) Register(ctx context.Context, username, password, email string) (*models.User, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies credentials and issues a fresh token. Unknown user
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, "", apperr.New(apperr.KindUnauthorized, "invalid credentials")
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Logout revokes the token's session record. A token that is already
// invalid or expired logs out successfully.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, jti, err := s.parseToken(token)
	if err != nil {
		return nil
	}
	return s.sessions.Revoke(ctx, jti)
}

// VerifyToken checks the signature and expiry, then requires the
// session record to still exist.
func (s *Service) VerifyToken(ctx context.Context, token string) (int64, error) {
	userID, jti, err := s.parseToken(token)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUnauthorized, "invalid token", err)
	}

	sessionUser, err := s.sessions.Resolve(ctx, jti)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return 0, apperr.New(apperr.KindUnauthorized, "session expired")
		}
		return 0, err
	}
	if sessionUser != userID {
		return 0, apperr.New(apperr.KindUnauthorized, "session mismatch")
	}
	return userID, nil
}

// ChangePassword replaces the password after verifying the old one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return apperr.New(apperr.KindUnauthorized, "invalid old password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdateUserPassword(ctx, userID, string(hash))
}

func (s *Service) issueToken(ctx context.Context, userID int64) (string, error) {
	jti := uuid.NewString()
	now := time.Now()

	claims := jwt.MapClaims{
		"user_id": userID,
		"jti":     jti,
		"iat":     now.Unix(),
		"exp":     now.Add(s.ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if err := s.sessions.Put(ctx, jti, userID, s.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// parseToken validates the signature and standard claims and pulls
// out the user id and session id.
func (s *Service) parseToken(token string) (int64, string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return 0, "", errors.New("invalid claims")
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", errors.New("token carries no user_id")
	}
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return 0, "", errors.New("token carries no session id")
	}
	return int64(userIDFloat), jti, nil
}
