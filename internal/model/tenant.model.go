package model

import (
	"regexp"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TenantType string

const (
	TenantBank    TenantType = "BANK"
	TenantNBFC    TenantType = "NBFC"
	TenantP2P     TenantType = "P2P"
	TenantFintech TenantType = "FINTECH"
)

type Tenant struct {
	Model
	TenantUUID     string     `json:"tenant_id"       gorm:"column:tenant_uuid;size:36;uniqueIndex;not null"`
	Name           string     `json:"name"            gorm:"column:name;size:255;uniqueIndex;not null" validate:"required,max=255"`
	Slug           string     `json:"slug"            gorm:"column:slug;size:255;index"`
	TenantType     TenantType `json:"tenant_type"     gorm:"column:tenant_type;size:20;not null"       validate:"required,oneof=BANK NBFC P2P FINTECH"`
	Email          string     `json:"email"           gorm:"column:email;size:254"                     validate:"omitempty,email"`
	Phone          string     `json:"phone"           gorm:"column:phone;size:20"`
	Address        string     `json:"address"         gorm:"column:address"`
	City           string     `json:"city"            gorm:"column:city;size:100"`
	State          string     `json:"state"           gorm:"column:state;size:100"`
	Pincode        string     `json:"pincode"         gorm:"column:pincode;size:10"`
	IsActive       bool       `json:"is_active"       gorm:"column:is_active;not null"`
	SubscriptionID *int64     `json:"subscription_id" gorm:"column:subscription_id"`
}

func (Tenant) TableName() string { return "tenants" }

func (t *Tenant) ApplyDefaults() { t.IsActive = true }

func (t *Tenant) BeforeSave(*gorm.DB) error {
	t.Slug = Slugify(t.Name)
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

type Branch struct {
	Model
	TenantRef
	BranchCode string `json:"branch_code" gorm:"column:branch_code;size:50;uniqueIndex;not null" validate:"required,max=50,code"`
	Name       string `json:"name"        gorm:"column:name;size:255;not null"                  validate:"required,max=255"`
	Phone      string `json:"phone"       gorm:"column:phone;size:20"                           validate:"omitempty,phone"`
	Address    string `json:"address"     gorm:"column:address"`
	IsActive   bool   `json:"is_active"   gorm:"column:is_active;not null"`
}

func (Branch) TableName() string { return "branches" }

func (b *Branch) ApplyDefaults() { b.IsActive = true }

type FinancialYear struct {
	Model
	TenantRef
	Name      string `json:"name"       gorm:"column:name;size:100;not null" validate:"required"`
	StartDate Date   `json:"start_date" gorm:"column:start_date;not null"    validate:"required"`
	EndDate   Date   `json:"end_date"   gorm:"column:end_date;not null"      validate:"required"`
	IsActive  bool   `json:"is_active"  gorm:"column:is_active;not null;default:false"`
}

func (FinancialYear) TableName() string { return "financial_years" }

func (f *FinancialYear) Check() map[string]string {
	return checkRange(f.StartDate, f.EndDate)
}

type ReportingPeriod struct {
	Model
	TenantRef
	Name      string `json:"name"       gorm:"column:name;size:100;not null" validate:"required"`
	StartDate Date   `json:"start_date" gorm:"column:start_date;not null"    validate:"required"`
	EndDate   Date   `json:"end_date"   gorm:"column:end_date;not null"      validate:"required"`
}

func (ReportingPeriod) TableName() string { return "reporting_periods" }

func (p *ReportingPeriod) Check() map[string]string {
	return checkRange(p.StartDate, p.EndDate)
}

func checkRange(start, end Date) map[string]string {
	if start.IsZero() || end.IsZero() || end.After(start.Time) {
		return nil
	}
	return map[string]string{"end_date": "end_date must be after start_date"}
}

type Holiday struct {
	Model
	TenantRef
	Name        string `json:"name"         gorm:"column:name;size:255;not null" validate:"required"`
	Date        Date   `json:"date"         gorm:"column:date;not null"          validate:"required"`
	IsRecurring bool   `json:"is_recurring" gorm:"column:is_recurring;not null;default:false"`
}

func (Holiday) TableName() string { return "holidays" }

type CategoryType string

var categoryDisplay = map[CategoryType]string{
	"loan":          "Loan",
	"product":       "Product",
	"document":      "Document",
	"lead":          "Lead",
	"source":        "Source",
	"customer":      "Customer",
	"internal_team": "Internal Team",
	"external_team": "External Team",
}

type Category struct {
	Model
	TenantRef
	CategoryType    CategoryType `json:"category_type"    gorm:"column:category_type;size:30;not null" validate:"required,oneof=loan product document lead source customer internal_team external_team"`
	CategoryDisplay string       `json:"category_display" gorm:"-"`
	Name            string       `json:"name"             gorm:"column:name;size:255;not null"         validate:"required"`
	Description     string       `json:"description"      gorm:"column:description"`
	IsActive        bool         `json:"is_active"        gorm:"column:is_active;not null"`
}

func (Category) TableName() string { return "categories" }

func (c *Category) ApplyDefaults() { c.IsActive = true }

func (c *Category) AfterFind(*gorm.DB) error {
	c.CategoryDisplay = categoryDisplay[c.CategoryType]
	return nil
}

func (c *Category) AfterSave(*gorm.DB) error {
	c.CategoryDisplay = categoryDisplay[c.CategoryType]
	return nil
}

type TenantRuleConfig struct {
	Model
	TenantID int64                         `json:"tenant_id" gorm:"column:tenant_id;uniqueIndex;not null"`
	Config   datatypes.JSONType[RuleConfig] `json:"config"    gorm:"column:config;not null"`
}

func (TenantRuleConfig) TableName() string { return "tenant_rule_configs" }
func (r TenantRuleConfig) OwnerTenant() int64 { return r.TenantID }
func (r *TenantRuleConfig) AssignTenant(id int64) {
	r.TenantID = id
}

// SignupRequest is the public tenant self-registration body.
type SignupRequest struct {
	BusinessName  string   `json:"business_name"  validate:"required,max=255"`
	Email         string   `json:"email"          validate:"required,email"`
	MobileNo      string   `json:"mobile_no"      validate:"required,phone"`
	Address       string   `json:"address"        validate:"required"`
	ContactPerson string   `json:"contact_person" validate:"required,max=150"`
	Password      string   `json:"password"       validate:"required"`
	LoanProduct   []string `json:"loan_product"   validate:"required,min=1,dive,required"`
	GSTIN         string   `json:"gst_in"`
	PAN           string   `json:"pan"`
	CIN           string   `json:"cin"`
}

type SignupResponse struct {
	Message  string `json:"message"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Access   string `json:"access"`
	Refresh  string `json:"refresh"`
}
