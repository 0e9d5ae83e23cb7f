package services

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
)

type SettingRepository interface {
	All(ctx context.Context) ([]*model.Setting, error)
	ByKeys(ctx context.Context, keys []string) ([]*model.Setting, error)
	SetValues(ctx context.Context, values map[string]string) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type SettingService struct {
	repo  SettingRepository
	audit *AuditService
}

func NewSettingService(repo SettingRepository, audit *AuditService) *SettingService {
	return &SettingService{repo: repo, audit: audit}
}

// Grouped returns every setting by category. Exactly the fixed categories
// are present, empty ones as []. Rows outside them are left out.
func (s *SettingService) Grouped(ctx context.Context) (model.GroupedSettings, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(model.GroupedSettings, len(model.SettingCategories))
	for _, c := range model.SettingCategories {
		out[c] = []*model.Setting{}
	}
	for _, st := range all {
		group, ok := out[st.Category]
		if !ok {
			continue
		}
		out[st.Category] = append(group, st)
	}
	return out, nil
}

var dataTypeHint = map[model.SettingDataType]string{
	model.DataBoolean: "value must be a boolean",
	model.DataNumber:  "value must be a number",
	model.DataString:  "value must be a string",
}

// Update writes a {key: value} map. Unknown keys are skipped and reported,
// a value that does not fit its data type rejects the whole update.
func (s *SettingService) Update(ctx context.Context, actor *model.Actor, body []byte) (*model.SettingsUpdateResponse, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, Invalid("request body is required")
	}
	var in map[string]json.RawMessage
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, Invalid("request body must be a JSON object")
	}
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	known, err := s.repo.ByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*model.Setting, len(known))
	for _, st := range known {
		byKey[st.Key] = st
	}

	skipped := []string{}
	invalid := map[string]string{}
	values := make(map[string]string, len(known))
	for _, k := range keys {
		st, ok := byKey[k]
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		v, ok := st.DataType.Coerce(in[k])
		if !ok {
			invalid[k] = dataTypeHint[st.DataType]
			continue
		}
		values[k] = v
	}
	if len(invalid) > 0 {
		return nil, InvalidFields(invalid)
	}

	if len(values) > 0 {
		err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.SetValues(ctx, values); err != nil {
				return storeError(err, "Setting")
			}
			return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleAdminPanel,
				"Updated settings: "+strings.Join(sortedKeys(values), ", "))
		})
		if err != nil {
			return nil, err
		}
	}
	return &model.SettingsUpdateResponse{Success: true, Skipped: skipped}, nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
