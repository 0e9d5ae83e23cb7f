package model

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type CRUDFlags struct {
	View   bool `json:"view"`
	Add    bool `json:"add"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

type AccessRules struct {
	Permissions  map[string]CRUDFlags `json:"permissions"`
	ModuleAccess ModuleAccess         `json:"module_access"`
}

type ModuleAccess struct {
	CRM        bool `json:"crm"`
	Loan       bool `json:"loan"`
	Collection bool `json:"collection"`
}

type DocumentVerification struct {
	Mandatory      []string `json:"mandatory"`
	AutoValidation bool     `json:"auto_validation"`
	UploadLimitMB  int      `json:"upload_limit_mb"`
}

type WorkflowRules struct {
	ApprovalLevels       []string             `json:"approval_levels"`
	ApproverRoles        []string             `json:"approver_roles"`
	RejectorRoles        []string             `json:"rejector_roles"`
	DocumentVerification DocumentVerification `json:"document_verification"`
}

type ValidationRules struct {
	UniqueEmail   bool `json:"unique_email"`
	PANFormat     bool `json:"pan_format"`
	AadhaarFormat bool `json:"aadhaar_format"`
	Phone10Digits bool `json:"phone_10_digits"`
}

type AutoAssign struct {
	Sales        bool `json:"sales"`
	Verification bool `json:"verification"`
	Credit       bool `json:"credit"`
}

type AssignmentRules struct {
	LeadByCategory       bool       `json:"lead_by_category"`
	ApplicationByProduct bool       `json:"application_by_product"`
	AutoAssign           AutoAssign `json:"auto_assign"`
}

type SecurityRules struct {
	PasswordMinLength       int      `json:"password_min_length"`
	PasswordSpecialRequired bool     `json:"password_special_required"`
	SessionTimeoutMinutes   int      `json:"session_timeout_minutes"`
	DeviceRestrictions      []string `json:"device_restrictions"`
}

// RuleConfig is the per-tenant rule document stored in tenant_rule_configs.config.
type RuleConfig struct {
	Access     AccessRules     `json:"access"`
	Workflow   WorkflowRules   `json:"workflow"`
	Validation ValidationRules `json:"validation"`
	Assignment AssignmentRules `json:"assignment"`
	Security   SecurityRules   `json:"security"`
}

var RuleResources = []string{"leads", "loan_applications", "documents", "products", "users"}

func DefaultRuleConfig() RuleConfig {
	perms := make(map[string]CRUDFlags, len(RuleResources))
	for _, r := range RuleResources {
		perms[r] = CRUDFlags{View: true, Add: true, Edit: true}
	}
	return RuleConfig{
		Access: AccessRules{
			Permissions:  perms,
			ModuleAccess: ModuleAccess{CRM: true, Loan: true, Collection: true},
		},
		Workflow: WorkflowRules{
			ApprovalLevels: []string{},
			ApproverRoles:  []string{},
			RejectorRoles:  []string{},
			DocumentVerification: DocumentVerification{
				Mandatory:     []string{},
				UploadLimitMB: 10,
			},
		},
		Validation: ValidationRules{UniqueEmail: true},
		Assignment: AssignmentRules{AutoAssign: AutoAssign{Sales: true, Verification: true, Credit: true}},
		Security: SecurityRules{
			PasswordMinLength:     8,
			SessionTimeoutMinutes: 30,
			DeviceRestrictions:    []string{},
		},
	}
}

//go:embed ruleconfig.schema.json
var ruleConfigSchema string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// ValidateRuleConfig checks a raw config document against the embedded schema
// and returns field errors keyed by json path.
func ValidateRuleConfig(raw []byte) (map[string]string, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(ruleConfigSchema))
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return map[string]string{"config": err.Error()}, nil
	}
	if res.Valid() {
		return nil, nil
	}
	out := make(map[string]string, len(res.Errors()))
	for _, e := range res.Errors() {
		field := "config"
		if f := e.Field(); f != "" && f != "(root)" {
			field = "config." + strings.TrimPrefix(f, "(root).")
		}
		out[field] = e.Description()
	}
	return out, nil
}
