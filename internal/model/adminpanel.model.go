package model

import (
	"encoding/json"
	"fmt"
	"sort"

	"gorm.io/datatypes"
)

type AdminLead struct {
	Model
	Name   string `json:"name"   gorm:"column:name;size:255;not null"  validate:"required,max=255"`
	Email  string `json:"email"  gorm:"column:email;size:254"          validate:"omitempty,email"`
	Mobile string `json:"mobile" gorm:"column:mobile;size:20"          validate:"omitempty,phone"`
	Source string `json:"source" gorm:"column:source;size:100"`
	Status string `json:"status" gorm:"column:status;size:30;not null;default:New"`
}

func (AdminLead) TableName() string { return "admin_leads" }

type ChargeMaster struct {
	Model
	Name         string  `json:"name"          gorm:"column:name;size:200;not null"       validate:"required,max=200"`
	ChargeType   string  `json:"charge_type"   gorm:"column:charge_type;size:20;not null" validate:"required,oneof=processing penalty other"`
	IsPercentage bool    `json:"is_percentage" gorm:"column:is_percentage;not null;default:false"`
	Value        float64 `json:"value"         gorm:"column:value;not null"               validate:"gte=0"`
	Description  string  `json:"description"   gorm:"column:description"`
}

func (ChargeMaster) TableName() string { return "charge_masters" }

type DocumentType struct {
	Model
	Name        string `json:"name"        gorm:"column:name;size:150;not null"            validate:"required,max=150"`
	Code        string `json:"code"        gorm:"column:code;size:50;uniqueIndex;not null" validate:"required,max=50,code"`
	Category    string `json:"category"    gorm:"column:category;size:20;not null;default:other" validate:"omitempty,oneof=kyc income other"`
	Description string `json:"description" gorm:"column:description"`
	IsRequired  bool   `json:"is_required" gorm:"column:is_required;not null"`
}

func (DocumentType) TableName() string { return "document_types" }

func (d *DocumentType) ApplyDefaults() { d.IsRequired = true }

type LoanProduct struct {
	Model
	Name                string          `json:"name"               gorm:"column:name;size:200;not null"     validate:"required,max=200"`
	LoanType            string          `json:"loan_type"          gorm:"column:loan_type;size:50;not null" validate:"required,oneof=personal car home business"`
	Description         string          `json:"description"        gorm:"column:description"`
	MinAmount           float64         `json:"min_amount"         gorm:"column:min_amount;not null;default:0" validate:"gte=0"`
	MaxAmount           float64         `json:"max_amount"         gorm:"column:max_amount;not null;default:0" validate:"gte=0"`
	InterestRate        float64         `json:"interest_rate"      gorm:"column:interest_rate;not null"        validate:"gte=0,lte=100"`
	ProcessingFee       float64         `json:"processing_fee"     gorm:"column:processing_fee;not null;default:0" validate:"gte=0"`
	MinTenure           int             `json:"min_tenure"         gorm:"column:min_tenure;not null;default:1"  validate:"gte=1"`
	MaxTenure           int             `json:"max_tenure"         gorm:"column:max_tenure;not null;default:60" validate:"gte=1"`
	IsActive            bool            `json:"is_active"          gorm:"column:is_active;not null"`
	Charges             []*ChargeMaster `json:"charges"            gorm:"many2many:loan_product_charges"`
	RequiredDocuments   []*DocumentType `json:"required_documents" gorm:"many2many:loan_product_documents"`
	ChargeIDs           *[]int64        `json:"charge_ids,omitempty"            gorm:"-"`
	RequiredDocumentIDs *[]int64        `json:"required_document_ids,omitempty" gorm:"-"`
}

func (LoanProduct) TableName() string { return "loan_products" }

func (p *LoanProduct) ApplyDefaults() {
	p.IsActive = true
	p.MinTenure = 1
	p.MaxTenure = 60
}

func (p *LoanProduct) Check() map[string]string {
	errs := map[string]string{}
	if p.MaxAmount < p.MinAmount {
		errs["max_amount"] = "max_amount must be greater than or equal to min_amount"
	}
	if p.MaxTenure < p.MinTenure {
		errs["max_tenure"] = "max_tenure must be greater than or equal to min_tenure"
	}
	return errs
}

type NotificationTemplate struct {
	Model
	Name         string `json:"name"          gorm:"column:name;size:200;not null"         validate:"required,max=200"`
	TemplateType string `json:"template_type" gorm:"column:template_type;size:20;not null" validate:"required,oneof=email sms system"`
	Subject      string `json:"subject"       gorm:"column:subject;size:300"`
	Body         string `json:"body"          gorm:"column:body;not null"                  validate:"required"`
	IsActive     bool   `json:"is_active"     gorm:"column:is_active;not null"`
}

func (NotificationTemplate) TableName() string { return "notification_templates" }

func (n *NotificationTemplate) ApplyDefaults() { n.IsActive = true }

type Permission string

var PermissionKeys = []Permission{
	"view_dashboard", "view_reports", "download_reports",
	"user_view", "user_create", "user_edit", "user_delete",
	"loan_view", "loan_create", "loan_edit", "loan_approve", "loan_disburse",
	"org_manage",
	"branch_view", "branch_create", "branch_edit",
	"role_manage", "audit_view", "settings_manage",
}

// Permissions is a role's permission map over the closed PermissionKeys set.
type Permissions map[Permission]bool

// ParsePermissions decodes raw and rejects keys outside PermissionKeys.
func ParsePermissions(raw []byte) (Permissions, error) {
	var in map[string]bool
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("permissions must be an object of booleans")
	}
	known := make(map[Permission]struct{}, len(PermissionKeys))
	for _, k := range PermissionKeys {
		known[k] = struct{}{}
	}
	var unknown []string
	out := make(Permissions, len(in))
	for k, v := range in {
		if _, ok := known[Permission(k)]; !ok {
			unknown = append(unknown, k)
			continue
		}
		out[Permission(k)] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown permission keys: %v", unknown)
	}
	return out, nil
}

func (p *Permissions) UnmarshalJSON(b []byte) error {
	parsed, err := ParsePermissions(b)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

type RoleMaster struct {
	Model
	Name         string                         `json:"name"           gorm:"column:name;size:150;uniqueIndex;not null" validate:"required,max=150"`
	Description  string                         `json:"description"    gorm:"column:description"`
	Permissions  datatypes.JSONType[Permissions] `json:"permissions"    gorm:"column:permissions;not null"`
	ParentRoleID *int64                         `json:"parent_role_id" gorm:"column:parent_role_id"`
	CreatedByID  *int64                         `json:"created_by_id"  gorm:"column:created_by_id"`
}

func (RoleMaster) TableName() string { return "role_masters" }
