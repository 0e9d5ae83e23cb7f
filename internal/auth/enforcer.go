package auth

import (
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/pkg/errors"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

const (
	ModuleTenants        = "tenants"
	ModuleUsers          = "users"
	ModuleCRM            = "crm"
	ModuleLOS            = "los"
	ModuleLMS            = "lms"
	ModuleDocuments      = "documents"
	ModuleCommunications = "communications"
	ModuleCompliance     = "compliance"
	ModuleIntegrations   = "integrations"
	ModuleOnboarding     = "onboarding"
	ModuleAdminPanel     = "adminpanel"
	ModuleReports        = "reports"
)

// write grants read as well.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act || (r.act == "read" && p.act == "write"))
`

//go:embed policy.csv
var policyCSV string

// ActionFor maps an HTTP method to read or write.
func ActionFor(method string) string {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "OPTIONS":
		return ActionRead
	}
	return ActionWrite
}

type Enforcer struct {
	e *casbin.Enforcer
}

// NewEnforcer builds the role/module/action enforcer from the embedded policy.
func NewEnforcer() (*Enforcer, error) {
	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, errors.Wrap(err, "casbin model")
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "casbin enforcer")
	}
	for _, line := range strings.Split(policyCSV, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 4 || strings.TrimSpace(parts[0]) != "p" {
			return nil, errors.Errorf("bad policy line %q", line)
		}
		if _, err := e.AddPolicy(strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), strings.TrimSpace(parts[3])); err != nil {
			return nil, errors.Wrapf(err, "policy %q", line)
		}
	}
	return &Enforcer{e: e}, nil
}

func (en *Enforcer) Allowed(role model.Role, module, action string) bool {
	ok, err := en.e.Enforce(string(role), module, action)
	return err == nil && ok
}
