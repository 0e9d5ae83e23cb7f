package model

import "time"

type Role string

const (
	RoleMasterAdmin    Role = "MASTER_ADMIN"
	RoleSuperAdmin     Role = "SUPER_ADMIN"
	RoleTenantAdmin    Role = "TENANT_ADMIN"
	RoleAdmin          Role = "ADMIN"
	RoleLoanOfficer    Role = "LOAN_OFFICER"
	RoleUnderwriter    Role = "UNDERWRITER"
	RoleFinanceStaff   Role = "FINANCE_STAFF"
	RoleSalesExecutive Role = "SALES_EXECUTIVE"
	RoleBorrower       Role = "BORROWER"
)

var Roles = []Role{
	RoleMasterAdmin, RoleSuperAdmin, RoleTenantAdmin, RoleAdmin, RoleLoanOfficer,
	RoleUnderwriter, RoleFinanceStaff, RoleSalesExecutive, RoleBorrower,
}

func (r Role) Valid() bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

// Privileged roles may only be granted by a master.
func (r Role) Privileged() bool {
	return r == RoleMasterAdmin || r == RoleSuperAdmin
}

// User is the identity record. Secrets never leave the process.
type User struct {
	ID            int64      `json:"id"`
	Email         string     `json:"email"          validate:"required,email"`
	PasswordHash  string     `json:"-"`
	Phone         string     `json:"phone"          validate:"omitempty,phone"`
	FirstName     string     `json:"first_name"     validate:"max=150"`
	LastName      string     `json:"last_name"      validate:"max=150"`
	Role          Role       `json:"role"           validate:"required"`
	TenantID      *int64     `json:"tenant_id"`
	BranchID      *int64     `json:"branch_id"`
	EmployeeID    string     `json:"employee_id"`
	ApprovalLimit float64    `json:"approval_limit" validate:"gte=0"`
	IsActive      bool       `json:"is_active"`
	IsStaff       bool       `json:"is_staff"`
	IsSuperuser   bool       `json:"is_superuser"`
	Is2FAEnabled  bool       `json:"is_2fa_enabled"`
	TwoFASecret   string     `json:"-"`
	LastLogin     *time.Time `json:"last_login"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	}
	return u.Email
}

// UserWrite is the create/update body of /users/users.
type UserWrite struct {
	User
	Password string `json:"password,omitempty"`
}

type UserFilter struct {
	ListQuery
	Role     string
	IsActive *bool
	BranchID *int64
}

type ProfileUpdate struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name"  validate:"omitempty,max=150"`
	Phone     *string `json:"phone"      validate:"omitempty,phone"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type TwoFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

type ActionType string

const (
	ActionLogin   ActionType = "LOGIN"
	ActionLogout  ActionType = "LOGOUT"
	ActionCreate  ActionType = "CREATE"
	ActionUpdate  ActionType = "UPDATE"
	ActionDelete  ActionType = "DELETE"
	ActionApprove ActionType = "APPROVE"
)

type AuditLog struct {
	ID          int64      `json:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	UserID      *int64     `json:"user_id"     gorm:"column:user_id;index"`
	UserEmail   string     `json:"user_email"  gorm:"->;column:user_email;-:migration"`
	TenantID    *int64     `json:"tenant_id"   gorm:"column:tenant_id;index"`
	ActionType  ActionType `json:"action_type" gorm:"column:action_type;size:20;not null"`
	Module      string     `json:"module"      gorm:"column:module;size:50"`
	Description string     `json:"description" gorm:"column:description"`
	IPAddress   string     `json:"ip_address"  gorm:"column:ip_address;size:64"`
	Timestamp   time.Time  `json:"timestamp"   gorm:"column:timestamp;autoCreateTime;index"`
}

func (AuditLog) TableName() string { return "audit_logs" }
func (a AuditLog) GetID() int64 { return a.ID }

type LoginActivity struct {
	ID         int64     `json:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID     *int64    `json:"user_id"    gorm:"column:user_id;index"`
	Email      string    `json:"email"      gorm:"column:email;size:254"`
	IPAddress  string    `json:"ip_address" gorm:"column:ip_address;size:64"`
	UserAgent  string    `json:"user_agent" gorm:"column:user_agent"`
	Timestamp  time.Time `json:"timestamp"  gorm:"column:timestamp;autoCreateTime;index"`
	Successful bool      `json:"successful" gorm:"column:successful;not null"`
}

func (LoginActivity) TableName() string { return "login_activities" }
func (l LoginActivity) GetID() int64 { return l.ID }

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type VerifyCodeRequest struct {
	Code string `json:"code" validate:"required"`
}
