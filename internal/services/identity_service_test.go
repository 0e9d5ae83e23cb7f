package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/redis"
	"github.com/pquerna/otp/totp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokens(t *testing.T) (*auth.Tokens, redis.RedisAdapter) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redis.NewFromClient("test:", client)
	return auth.NewTokens("test-secret", time.Hour, 24*time.Hour, store), store
}

func signupRequest() model.SignupRequest {
	return model.SignupRequest{
		BusinessName:  "Sahyadri Finance",
		Email:         "Owner@Sahyadri.in",
		MobileNo:      "+919800000010",
		Address:       "12 MG Road, Pune",
		ContactPerson: "Meera Kulkarni",
		Password:      "loans2024",
		LoanProduct:   []string{"PERSONAL"},
	}
}

type failingUsers struct {
	*repository.UserRepository
}

func (failingUsers) Create(context.Context, *model.User) (*model.User, error) {
	return nil, errors.New("disk full")
}

func TestTenantService_Signup(t *testing.T) {
	f := newFixture(t)
	tokens, _ := newTokens(t)
	s := NewTenantService(f.db, f.tenants, f.users, tokens, f.audit)
	ctx := context.Background()

	resp, err := s.Signup(ctx, &model.Actor{IP: "10.0.0.1"}, signupRequest())
	require.NoError(t, err)
	assert.Equal(t, "Signup successful", resp.Message)
	assert.Equal(t, "owner@sahyadri.in", resp.Email)
	assert.NotEmpty(t, resp.Access)
	assert.NotEmpty(t, resp.Refresh)

	tn, err := f.tenants.GetByUUID(ctx, resp.TenantID)
	require.NoError(t, err)
	assert.Equal(t, model.TenantNBFC, tn.TenantType)

	u, err := f.users.GetByEmail(ctx, "owner@sahyadri.in")
	require.NoError(t, err)
	assert.Equal(t, model.RoleTenantAdmin, u.Role)
	assert.Equal(t, "Meera Kulkarni", u.FirstName)
	require.NotNil(t, u.TenantID)
	assert.Equal(t, tn.ID, *u.TenantID)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "loans2024"))

	var configs int64
	require.NoError(t, f.db.Read(ctx).Model(&model.TenantRuleConfig{}).Where("tenant_id = ?", tn.ID).Count(&configs).Error)
	assert.Equal(t, int64(1), configs)
	assert.Equal(t, int64(1), f.auditCount(t, model.ActionCreate, ModuleTenants))

	t.Run("email already registered", func(t *testing.T) {
		req := signupRequest()
		req.BusinessName = "Other Finance"
		_, err := s.Signup(ctx, &model.Actor{}, req)
		assertInvalid(t, err, "")
		assert.EqualError(t, err, "Email already registered")
	})

	t.Run("business name taken", func(t *testing.T) {
		req := signupRequest()
		req.Email = "second@sahyadri.in"
		req.BusinessName = "SAHYADRI FINANCE"
		_, err := s.Signup(ctx, &model.Actor{}, req)
		assert.EqualError(t, err, "Business name already exists")
	})

	t.Run("password policy", func(t *testing.T) {
		req := signupRequest()
		req.Email = "third@sahyadri.in"
		req.BusinessName = "Third Finance"
		req.Password = "onlyletters"
		_, err := s.Signup(ctx, &model.Actor{}, req)
		assertInvalid(t, err, "password")
	})

	t.Run("missing loan products", func(t *testing.T) {
		req := signupRequest()
		req.LoanProduct = nil
		_, err := s.Signup(ctx, &model.Actor{}, req)
		assertInvalid(t, err, "loan_product")
	})
}

func TestTenantService_SignupRollsBack(t *testing.T) {
	f := newFixture(t)
	tokens, _ := newTokens(t)
	s := NewTenantService(f.db, f.tenants, failingUsers{f.users}, tokens, f.audit)

	_, err := s.Signup(context.Background(), &model.Actor{}, signupRequest())
	require.EqualError(t, err, "disk full")

	taken, err := f.tenants.NameTaken(context.Background(), "Sahyadri Finance")
	require.NoError(t, err)
	assert.False(t, taken)
	assert.Zero(t, f.auditCount(t, model.ActionCreate, ModuleTenants))
}

type authFixture struct {
	*fixture
	tokens   *auth.Tokens
	throttle *auth.Throttle
	svc      *AuthService
	user     *model.User
}

func newAuthFixture(t *testing.T) *authFixture {
	f := newFixture(t)
	tokens, store := newTokens(t)
	throttle := auth.NewThrottle(store, 3, 15*time.Minute)
	hash, err := auth.HashPassword("s3cretpass")
	require.NoError(t, err)
	tn := f.tenant(t, "Acme")
	u, err := f.users.Create(context.Background(), &model.User{
		Email: "officer@acme.in", PasswordHash: hash, Role: model.RoleLoanOfficer, TenantID: &tn.ID, IsActive: true,
	})
	require.NoError(t, err)
	return &authFixture{
		fixture:  f,
		tokens:   tokens,
		throttle: throttle,
		svc:      NewAuthService(f.users, tokens, throttle, f.audit),
		user:     u,
	}
}

func (a *authFixture) activities(t *testing.T) []*model.LoginActivity {
	list, err := a.users.LoginActivities(context.Background(), a.user.ID, 50)
	require.NoError(t, err)
	return list
}

func TestAuthService_Login(t *testing.T) {
	a := newAuthFixture(t)
	ctx := context.Background()
	client := &model.Actor{IP: "10.1.1.1", UserAgent: "test"}

	pair, err := a.svc.Login(ctx, client, model.LoginRequest{Email: " Officer@Acme.in ", Password: "s3cretpass"})
	require.NoError(t, err)
	claims, err := a.tokens.Parse(pair.Access, auth.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, a.user.ID, claims.UserID())
	assert.Equal(t, model.RoleLoanOfficer, claims.Role)

	u, err := a.users.GetByID(ctx, a.user.ID, nil)
	require.NoError(t, err)
	assert.NotNil(t, u.LastLogin)
	assert.Equal(t, int64(1), a.auditCount(t, model.ActionLogin, ModuleUsers))

	_, err = a.svc.Login(ctx, client, model.LoginRequest{Email: "officer@acme.in", Password: "wrong-pass1"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.EqualError(t, err, msgBadCredentials)

	acts := a.activities(t)
	require.Len(t, acts, 2)
	var ok, failed int
	for _, act := range acts {
		if act.Successful {
			ok++
		} else {
			failed++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestAuthService_LoginInactiveAndUnknown(t *testing.T) {
	a := newAuthFixture(t)
	ctx := context.Background()

	_, err := a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "nobody@acme.in", Password: "s3cretpass"})
	assert.EqualError(t, err, msgBadCredentials)

	a.user.IsActive = false
	_, err = a.users.Update(ctx, a.user)
	require.NoError(t, err)
	_, err = a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass"})
	assert.EqualError(t, err, msgBadCredentials)
}

func TestAuthService_Throttle(t *testing.T) {
	a := newAuthFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "bad-guess1"})
		assert.ErrorIs(t, err, ErrUnauthenticated)
	}
	// even the right password is refused inside the window
	_, err := a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass"})
	assert.ErrorIs(t, err, ErrThrottled)

	require.NoError(t, a.throttle.Reset("officer@acme.in"))
	_, err = a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass"})
	assert.NoError(t, err)
}

func TestAuthService_TwoFactor(t *testing.T) {
	a := newAuthFixture(t)
	ctx := context.Background()
	users := NewUserService(a.db, a.users, a.tenants, a.audit, "Lending Admin")
	actor := &model.Actor{UserID: a.user.ID, Email: a.user.Email, Role: a.user.Role, TenantID: a.user.TenantID}

	assert.EqualError(t, users.Verify2FA(ctx, actor, model.VerifyCodeRequest{Code: "123456"}), "2FA not set up")

	setup, err := users.Setup2FA(ctx, actor)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.OTPAuthURL, "otpauth://totp/")
	assert.Contains(t, setup.QRCode, "data:image/png;base64,")

	// not enabled until verified
	_, err = a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass"})
	require.NoError(t, err)

	assert.EqualError(t, users.Verify2FA(ctx, actor, model.VerifyCodeRequest{Code: "000000x"}), msgInvalid2FA)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, users.Verify2FA(ctx, actor, model.VerifyCodeRequest{Code: code}))

	_, err = a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass"})
	assert.EqualError(t, err, msg2FARequired)
	_, err = a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass", OTP: "000000x"})
	assert.EqualError(t, err, msgInvalid2FA)
	_, err = a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass", OTP: code})
	assert.NoError(t, err)

	require.NoError(t, users.Disable2FA(ctx, actor))
	_, err = a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass"})
	assert.NoError(t, err)
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	a := newAuthFixture(t)
	ctx := context.Background()

	pair, err := a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "s3cretpass"})
	require.NoError(t, err)

	access, err := a.svc.Refresh(ctx, model.RefreshRequest{Refresh: pair.Refresh})
	require.NoError(t, err)
	_, err = a.tokens.Parse(access, auth.TypeAccess)
	assert.NoError(t, err)

	_, err = a.svc.Refresh(ctx, model.RefreshRequest{Refresh: pair.Access})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	require.NoError(t, a.svc.Logout(ctx, &model.Actor{}, model.RefreshRequest{Refresh: pair.Refresh}))
	assert.Equal(t, int64(1), a.auditCount(t, model.ActionLogout, ModuleUsers))

	_, err = a.svc.Refresh(ctx, model.RefreshRequest{Refresh: pair.Refresh})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, a.svc.Logout(ctx, &model.Actor{}, model.RefreshRequest{Refresh: pair.Refresh}), ErrUnauthenticated)
}

func TestUserService_Profile(t *testing.T) {
	a := newAuthFixture(t)
	ctx := context.Background()
	s := NewUserService(a.db, a.users, a.tenants, a.audit, "Lending Admin")
	actor := &model.Actor{UserID: a.user.ID, Email: a.user.Email, Role: a.user.Role, TenantID: a.user.TenantID}

	u, err := s.UpdateProfile(ctx, actor, model.ProfileUpdate{FirstName: ptr(" Ravi "), Phone: ptr("+919811111111")})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", u.FirstName)
	assert.Equal(t, "+919811111111", u.Phone)
	assert.Equal(t, model.RoleLoanOfficer, u.Role)

	_, err = s.UpdateProfile(ctx, actor, model.ProfileUpdate{Phone: ptr("call me")})
	assertInvalid(t, err, "phone")

	err = s.ChangePassword(ctx, actor, model.ChangePasswordRequest{OldPassword: "nope", NewPassword: "newpass99"})
	assert.EqualError(t, err, "Old password is incorrect")

	err = s.ChangePassword(ctx, actor, model.ChangePasswordRequest{OldPassword: "s3cretpass", NewPassword: "short1"})
	assertInvalid(t, err, "new_password")

	require.NoError(t, s.ChangePassword(ctx, actor, model.ChangePasswordRequest{OldPassword: "s3cretpass", NewPassword: "newpass99"}))
	_, err = a.svc.Login(ctx, &model.Actor{}, model.LoginRequest{Email: "officer@acme.in", Password: "newpass99"})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), a.auditCount(t, model.ActionUpdate, ModuleUsers))
}

func TestUserService_ManageUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := NewUserService(f.db, f.users, f.tenants, f.audit, "Lending Admin")
	acme := f.tenant(t, "Acme")
	other := f.tenant(t, "Other")
	admin := tenantAdmin(acme.ID)

	_, err := s.Create(ctx, admin, []byte(`{"email":"x@acme.in","role":"LOAN_OFFICER"}`))
	assertInvalid(t, err, "password")

	_, err = s.Create(ctx, admin, []byte(`{"email":"root2@acme.in","role":"MASTER_ADMIN","password":"s3cretpass"}`))
	assert.ErrorIs(t, err, ErrForbidden)

	u, err := s.Create(ctx, admin, []byte(`{"email":"Clerk@Acme.in","role":"LOAN_OFFICER","password":"s3cretpass","tenant_id":`+key(other.ID)+`}`))
	require.NoError(t, err)
	assert.Equal(t, "clerk@acme.in", u.Email)
	require.NotNil(t, u.TenantID)
	assert.Equal(t, acme.ID, *u.TenantID)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)

	_, err = s.Create(ctx, admin, []byte(`{"email":"clerk@acme.in","role":"LOAN_OFFICER","password":"s3cretpass"}`))
	assertInvalid(t, err, "")

	// other tenants cannot see it
	_, err = s.Get(ctx, tenantAdmin(other.ID), key(u.ID))
	assert.True(t, IsNotFound(err))

	_, err = s.Update(ctx, admin, key(u.ID), []byte(`{"role":"SUPER_ADMIN"}`))
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, s.Delete(ctx, admin, key(u.ID)))
	got, err := s.Get(ctx, master(), key(u.ID))
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, int64(1), f.auditCount(t, model.ActionDelete, ModuleUsers))
}
