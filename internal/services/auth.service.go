package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/prom"
	"github.com/nimasrn/lending-admin/pkg/validate"
)

const ModuleUsers = "users"

const (
	msgBadCredentials = "No active account found with the given credentials"
	msg2FARequired    = "2FA code required"
	msgInvalid2FA     = "Invalid 2FA code"
	msgBadRefresh     = "Token is invalid or expired"
)

type AuthUserRepository interface {
	GetByID(ctx context.Context, id int64, tenantID *int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	AddLoginActivity(ctx context.Context, a *model.LoginActivity) error
}

type TokenManager interface {
	TokenIssuer
	Access(u *model.User) (string, error)
	ParseRefresh(raw string) (*auth.Claims, error)
	Revoke(claims *auth.Claims) error
}

type LoginThrottle interface {
	Locked(email string) (bool, error)
	Fail(email string) error
	Reset(email string) error
}

type AuthService struct {
	users    AuthUserRepository
	tokens   TokenManager
	throttle LoginThrottle
	audit    *AuditService
	now      func() time.Time
}

func NewAuthService(users AuthUserRepository, tokens TokenManager, throttle LoginThrottle, audit *AuditService) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		throttle: throttle,
		audit:    audit,
		now:      time.Now,
	}
}

// Login checks credentials and the second factor and returns a token pair.
// Every attempt is recorded as login activity.
func (s *AuthService) Login(ctx context.Context, client *model.Actor, req model.LoginRequest) (*auth.TokenPair, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if fields := validate.Struct(req); fields != nil {
		return nil, InvalidFields(fields)
	}

	locked, err := s.throttle.Locked(req.Email)
	if err != nil {
		return nil, err
	}
	if locked {
		prom.IncLogins("throttled")
		return nil, ErrThrottled
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if user == nil || !user.IsActive || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.fail(ctx, client, req.Email, user)
		return nil, unauthorized(msgBadCredentials)
	}
	if user.Is2FAEnabled {
		if strings.TrimSpace(req.OTP) == "" {
			s.recordActivity(ctx, client, req.Email, user, false)
			prom.IncLogins("otp_required")
			return nil, unauthorized(msg2FARequired)
		}
		if !auth.ValidateTOTP(req.OTP, user.TwoFASecret) {
			s.fail(ctx, client, req.Email, user)
			return nil, unauthorized(msgInvalid2FA)
		}
	}

	pair, err := s.tokens.Pair(user)
	if err != nil {
		return nil, err
	}
	s.recordActivity(ctx, client, req.Email, user, true)
	if err := s.users.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		logger.Warn("[auth] failed to update last login", "user", user.ID, "error", err)
	}
	if err := s.throttle.Reset(req.Email); err != nil {
		logger.Warn("[auth] failed to reset login throttle", "email", req.Email, "error", err)
	}
	s.audit.Note(ctx, actorOf(user, client), model.ActionLogin, ModuleUsers, "User logged in")
	prom.IncLogins("success")
	return pair, nil
}

func (s *AuthService) fail(ctx context.Context, client *model.Actor, email string, user *model.User) {
	s.recordActivity(ctx, client, email, user, false)
	if err := s.throttle.Fail(email); err != nil {
		logger.Warn("[auth] failed to count login failure", "email", email, "error", err)
	}
	prom.IncLogins("failure")
}

func (s *AuthService) recordActivity(ctx context.Context, client *model.Actor, email string, user *model.User, ok bool) {
	a := &model.LoginActivity{
		Email:      email,
		IPAddress:  client.IP,
		UserAgent:  client.UserAgent,
		Successful: ok,
	}
	if user != nil {
		id := user.ID
		a.UserID = &id
	}
	if err := s.users.AddLoginActivity(ctx, a); err != nil {
		logger.Warn("[auth] failed to record login activity", "email", email, "error", err)
	}
}

// Refresh exchanges a live refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, req model.RefreshRequest) (string, error) {
	claims, err := s.tokens.ParseRefresh(strings.TrimSpace(req.Refresh))
	if err != nil {
		return "", unauthorized(msgBadRefresh)
	}
	user, err := s.users.GetByID(ctx, claims.UserID(), nil)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !user.IsActive) {
		return "", unauthorized(msgBadCredentials)
	}
	if err != nil {
		return "", err
	}
	return s.tokens.Access(user)
}

// Logout revokes the refresh token so it can no longer be exchanged.
func (s *AuthService) Logout(ctx context.Context, actor *model.Actor, req model.RefreshRequest) error {
	claims, err := s.tokens.ParseRefresh(strings.TrimSpace(req.Refresh))
	if err != nil {
		return unauthorized(msgBadRefresh)
	}
	if actor.Authenticated() && claims.UserID() != actor.UserID {
		return unauthorized(msgBadRefresh)
	}
	if err := s.tokens.Revoke(claims); err != nil {
		return err
	}
	who := actor
	if !actor.Authenticated() {
		who = &model.Actor{UserID: claims.UserID(), TenantID: claims.TenantID, IP: actor.IP}
	}
	s.audit.Note(ctx, who, model.ActionLogout, ModuleUsers, "User logged out")
	return nil
}

func actorOf(u *model.User, client *model.Actor) *model.Actor {
	return &model.Actor{
		UserID:      u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		TenantID:    u.TenantID,
		BranchID:    u.BranchID,
		IsSuperuser: u.IsSuperuser,
		IP:          client.IP,
		UserAgent:   client.UserAgent,
	}
}
