package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/validate"
)

const loginActivityLimit = 50

type UserRepository interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Update(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64, tenantID *int64) (*model.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, f model.UserFilter) ([]*model.User, int64, error)
	LoginActivities(ctx context.Context, userID int64, limit int) ([]*model.LoginActivity, error)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type BranchChecker interface {
	TenantDirectory
	BranchExists(ctx context.Context, id, tenantID int64) (bool, error)
}

type UserService struct {
	users   UserRepository
	tenants BranchChecker
	audit   *AuditService
	issuer  string

	AuditLogs *Resource[model.AuditLog]
}

func NewUserService(db *pg.DB, users UserRepository, tenants BranchChecker, audit *AuditService, issuer string) *UserService {
	return &UserService{
		users:   users,
		tenants: tenants,
		audit:   audit,
		issuer:  issuer,
		AuditLogs: NewResource(ResourceConfig[model.AuditLog]{
			Name:   "Audit log",
			Store:  repository.NewStore[model.AuditLog](db, repository.AuditLogOptions()),
			Scoped: true,
		}),
	}
}

func (s *UserService) Me(ctx context.Context, actor *model.Actor) (*model.User, error) {
	u, err := s.users.GetByID(ctx, actor.UserID, nil)
	if err != nil {
		return nil, storeError(err, "User")
	}
	return u, nil
}

// UpdateProfile changes the caller's name and phone, nothing else.
func (s *UserService) UpdateProfile(ctx context.Context, actor *model.Actor, req model.ProfileUpdate) (*model.User, error) {
	if fields := validate.Struct(req); fields != nil {
		return nil, InvalidFields(fields)
	}
	u, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		u.Phone = strings.TrimSpace(*req.Phone)
	}
	return s.users.Update(ctx, u)
}

func (s *UserService) ChangePassword(ctx context.Context, actor *model.Actor, req model.ChangePasswordRequest) error {
	if fields := validate.Struct(req); fields != nil {
		return InvalidFields(fields)
	}
	u, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, req.OldPassword) {
		return Invalid("Old password is incorrect")
	}
	if err := auth.ValidatePassword(req.NewPassword, u.Email); err != nil {
		return InvalidFields(map[string]string{"new_password": err.Error()})
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.users.Update(ctx, u); err != nil {
			return err
		}
		return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleUsers, "Password changed")
	})
}

// Setup2FA stores a fresh TOTP secret without enabling it. The caller
// confirms with Verify2FA.
func (s *UserService) Setup2FA(ctx context.Context, actor *model.Actor) (*model.TwoFASetup, error) {
	u, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}
	setup, err := auth.NewTOTP(s.issuer, u.Email)
	if err != nil {
		return nil, err
	}
	u.TwoFASecret = setup.Secret
	u.Is2FAEnabled = false
	if _, err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return setup, nil
}

func (s *UserService) Verify2FA(ctx context.Context, actor *model.Actor, req model.VerifyCodeRequest) error {
	u, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if u.TwoFASecret == "" {
		return Invalid("2FA not set up")
	}
	if !auth.ValidateTOTP(req.Code, u.TwoFASecret) {
		return Invalid(msgInvalid2FA)
	}
	u.Is2FAEnabled = true
	_, err = s.users.Update(ctx, u)
	return err
}

func (s *UserService) Disable2FA(ctx context.Context, actor *model.Actor) error {
	u, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	u.TwoFASecret = ""
	u.Is2FAEnabled = false
	_, err = s.users.Update(ctx, u)
	return err
}

func (s *UserService) LoginActivity(ctx context.Context, actor *model.Actor) ([]*model.LoginActivity, error) {
	return s.users.LoginActivities(ctx, actor.UserID, loginActivityLimit)
}

func (s *UserService) List(ctx context.Context, actor *model.Actor, f model.UserFilter) (*model.ListResult[model.User], error) {
	tid, err := readScope(actor, f.TenantID)
	if err != nil {
		return nil, err
	}
	f.TenantID = tid
	items, total, err := s.users.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &model.ListResult[model.User]{Items: items, Total: total}, nil
}

func (s *UserService) Get(ctx context.Context, actor *model.Actor, key string) (*model.User, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, notFound("User not found")
	}
	var tid *int64
	if !actor.IsMaster() {
		if actor.TenantID == nil {
			return nil, ErrNoTenant
		}
		tid = actor.TenantID
	}
	u, err := s.users.GetByID(ctx, id, tid)
	if err != nil {
		return nil, storeError(err, "User")
	}
	return u, nil
}

// Create adds a user to the caller's tenant. The password is required and
// only masters may grant MASTER_ADMIN or SUPER_ADMIN.
func (s *UserService) Create(ctx context.Context, actor *model.Actor, body []byte) (*model.User, error) {
	in := model.UserWrite{User: model.User{IsActive: true, Role: model.RoleBorrower}}
	if err := decodeBody(body, &in); err != nil {
		return nil, err
	}
	u := &in.User
	u.ID = 0
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	if err := s.checkRole(actor, u.Role); err != nil {
		return nil, err
	}
	if !actor.IsMaster() {
		u.IsSuperuser = false
	}
	if in.Password == "" {
		return nil, InvalidFields(map[string]string{"password": "password is required"})
	}
	if err := auth.ValidatePassword(in.Password, u.Email); err != nil {
		return nil, InvalidFields(map[string]string{"password": err.Error()})
	}

	if !(actor.IsMaster() && u.Role.Privileged() && u.TenantID == nil) {
		body := int64(0)
		if u.TenantID != nil {
			body = *u.TenantID
		}
		tid, err := writeTenant(ctx, s.tenants, actor, body)
		if err != nil {
			return nil, err
		}
		u.TenantID = &tid
	}
	if err := s.checkBranch(ctx, u); err != nil {
		return nil, err
	}
	if err := Check(u); err != nil {
		return nil, err
	}
	exists, err := s.users.EmailExists(ctx, u.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, Invalid("User already exists")
	}
	if u.PasswordHash, err = auth.HashPassword(in.Password); err != nil {
		return nil, err
	}

	var created *model.User
	err = s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if created, err = s.users.Create(ctx, u); err != nil {
			return storeError(err, "User")
		}
		return s.audit.Record(ctx, actor, model.ActionCreate, ModuleUsers, "Created user "+created.Email)
	})
	return created, err
}

func (s *UserService) Update(ctx context.Context, actor *model.Actor, key string, body []byte) (*model.User, error) {
	current, err := s.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	if current.Role.Privileged() && !actor.IsMaster() {
		return nil, ErrForbidden
	}
	drop := readOnlyKeys
	if !actor.IsMaster() {
		drop = append(append([]string{}, readOnlyKeys...), "is_superuser")
	}
	patch, err := stripKeys(body, drop)
	if err != nil {
		return nil, err
	}
	in := model.UserWrite{User: *current}
	if err := decodeBody(patch, &in); err != nil {
		return nil, err
	}
	u := &in.User
	u.ID = current.ID
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := s.checkRole(actor, u.Role); err != nil {
		return nil, err
	}
	if in.Password != "" {
		if err := auth.ValidatePassword(in.Password, u.Email); err != nil {
			return nil, InvalidFields(map[string]string{"password": err.Error()})
		}
		if u.PasswordHash, err = auth.HashPassword(in.Password); err != nil {
			return nil, err
		}
	}
	if err := s.checkBranch(ctx, u); err != nil {
		return nil, err
	}
	if err := Check(u); err != nil {
		return nil, err
	}

	var updated *model.User
	err = s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		if updated, err = s.users.Update(ctx, u); err != nil {
			return storeError(err, "User")
		}
		return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleUsers, "Updated user "+updated.Email)
	})
	return updated, err
}

// Delete deactivates the user, rows are never removed.
func (s *UserService) Delete(ctx context.Context, actor *model.Actor, key string) error {
	u, err := s.Get(ctx, actor, key)
	if err != nil {
		return err
	}
	if u.Role.Privileged() && !actor.IsMaster() {
		return ErrForbidden
	}
	u.IsActive = false
	return s.users.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.users.Update(ctx, u); err != nil {
			return err
		}
		return s.audit.Record(ctx, actor, model.ActionDelete, ModuleUsers, "Deactivated user "+u.Email)
	})
}

func (s *UserService) checkRole(actor *model.Actor, role model.Role) error {
	if !role.Valid() {
		return InvalidFields(map[string]string{"role": "role must be one of the known roles"})
	}
	if role.Privileged() && !actor.IsMaster() {
		return ErrForbidden
	}
	return nil
}

func (s *UserService) checkBranch(ctx context.Context, u *model.User) error {
	if u.BranchID == nil {
		return nil
	}
	if u.TenantID == nil {
		return InvalidFields(map[string]string{"branch_id": "branch requires a tenant"})
	}
	ok, err := s.tenants.BranchExists(ctx, *u.BranchID, *u.TenantID)
	if err != nil {
		return err
	}
	if !ok {
		return InvalidFields(map[string]string{"branch_id": "branch does not belong to the tenant"})
	}
	return nil
}

// IsNotFound reports whether err is a missing row at any layer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, repository.ErrNotFound)
}
