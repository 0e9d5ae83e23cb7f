package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/model"
)

type adminInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type adminStore interface {
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *model.User) (*model.User, error)
}

// seedAdmin creates a platform-wide MASTER_ADMIN with no tenant.
func seedAdmin(ctx context.Context, users adminStore, in adminInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if err := auth.ValidatePassword(in.Password, email); err != nil {
		return nil, err
	}
	taken, err := users.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("user %s already exists", email)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return users.Create(ctx, &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         model.RoleMasterAdmin,
		IsActive:     true,
		IsStaff:      true,
		IsSuperuser:  true,
	})
}
