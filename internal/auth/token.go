package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/redis"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	refreshKeyPrefix = "auth:refresh:"
)

var ErrInvalidToken = errors.New("token is invalid or expired")

type Claims struct {
	Role     model.Role `json:"role"`
	TenantID *int64     `json:"tenant_id"`
	Type     string     `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Tokens issues HS256 access and refresh tokens. Refresh token ids are kept
// in redis for their lifetime so logout can revoke them.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      redis.RedisAdapter
	now        func() time.Time
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration, store redis.RedisAdapter) *Tokens {
	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        time.Now,
	}
}

func (t *Tokens) sign(u *model.User, typ string, ttl time.Duration) (string, *Claims, error) {
	now := t.now()
	claims := &Claims{
		Role:     u.Role,
		TenantID: u.TenantID,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func (t *Tokens) Access(u *model.User) (string, error) {
	s, _, err := t.sign(u, TypeAccess, t.accessTTL)
	return s, err
}

func (t *Tokens) Pair(u *model.User) (*TokenPair, error) {
	access, err := t.Access(u)
	if err != nil {
		return nil, err
	}
	refresh, claims, err := t.sign(u, TypeRefresh, t.refreshTTL)
	if err != nil {
		return nil, err
	}
	if err := t.store.Set(refreshKeyPrefix+claims.ID, []byte(claims.Subject), t.refreshTTL); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse verifies signature, expiry and typ.
func (t *Tokens) Parse(raw, typ string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || claims.Type != typ || claims.UserID() == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh additionally requires the token id to be unrevoked.
func (t *Tokens) ParseRefresh(raw string) (*Claims, error) {
	claims, err := t.Parse(raw, TypeRefresh)
	if err != nil {
		return nil, err
	}
	n, err := t.store.Exist(refreshKeyPrefix + claims.ID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *Tokens) Revoke(claims *Claims) error {
	return t.store.Del(refreshKeyPrefix + claims.ID)
}
