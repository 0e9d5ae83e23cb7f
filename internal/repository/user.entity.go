package repository

import (
	"time"

	"github.com/nimasrn/lending-admin/internal/model"
)

type UserEntity struct {
	ID            int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Email         string     `gorm:"column:email;size:254;uniqueIndex;not null"`
	PasswordHash  string     `gorm:"column:password_hash;size:255;not null"`
	Phone         string     `gorm:"column:phone;size:20"`
	FirstName     string     `gorm:"column:first_name;size:150"`
	LastName      string     `gorm:"column:last_name;size:150"`
	Role          string     `gorm:"column:role;size:30;not null;default:BORROWER"`
	TenantID      *int64     `gorm:"column:tenant_id;index"`
	BranchID      *int64     `gorm:"column:branch_id;index"`
	EmployeeID    string     `gorm:"column:employee_id;size:50"`
	ApprovalLimit float64    `gorm:"column:approval_limit;not null;default:0"`
	IsActive      bool       `gorm:"column:is_active;not null"`
	IsStaff       bool       `gorm:"column:is_staff;not null;default:false"`
	IsSuperuser   bool       `gorm:"column:is_superuser;not null;default:false"`
	Is2FAEnabled  bool       `gorm:"column:is_2fa_enabled;not null;default:false"`
	TwoFASecret   string     `gorm:"column:two_fa_secret;size:64"`
	LastLogin     *time.Time `gorm:"column:last_login"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	return &UserEntity{
		ID:            m.ID,
		Email:         m.Email,
		PasswordHash:  m.PasswordHash,
		Phone:         m.Phone,
		FirstName:     m.FirstName,
		LastName:      m.LastName,
		Role:          string(m.Role),
		TenantID:      m.TenantID,
		BranchID:      m.BranchID,
		EmployeeID:    m.EmployeeID,
		ApprovalLimit: m.ApprovalLimit,
		IsActive:      m.IsActive,
		IsStaff:       m.IsStaff,
		IsSuperuser:   m.IsSuperuser,
		Is2FAEnabled:  m.Is2FAEnabled,
		TwoFASecret:   m.TwoFASecret,
		LastLogin:     m.LastLogin,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:            e.ID,
		Email:         e.Email,
		PasswordHash:  e.PasswordHash,
		Phone:         e.Phone,
		FirstName:     e.FirstName,
		LastName:      e.LastName,
		Role:          model.Role(e.Role),
		TenantID:      e.TenantID,
		BranchID:      e.BranchID,
		EmployeeID:    e.EmployeeID,
		ApprovalLimit: e.ApprovalLimit,
		IsActive:      e.IsActive,
		IsStaff:       e.IsStaff,
		IsSuperuser:   e.IsSuperuser,
		Is2FAEnabled:  e.Is2FAEnabled,
		TwoFASecret:   e.TwoFASecret,
		LastLogin:     e.LastLogin,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toUserModels(entities []*UserEntity) []*model.User {
	if entities == nil {
		return nil
	}
	models := make([]*model.User, len(entities))
	for i, e := range entities {
		models[i] = toUserModel(e)
	}
	return models
}
