package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/validate"
)

// ResourceStore is what a Resource needs from repository.Store.
type ResourceStore[T any] interface {
	List(ctx context.Context, q model.ListQuery) ([]*T, int64, error)
	Get(ctx context.Context, key string, tenantID *int64) (*T, error)
	Create(ctx context.Context, v *T) error
	Update(ctx context.Context, v *T) error
	Delete(ctx context.Context, v *T) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Hook runs against the decoded row before it is validated and written.
type Hook[T any] func(ctx context.Context, actor *model.Actor, v *T) error

type ResourceConfig[T any] struct {
	// Name is used in client messages, e.g. "Branch already exists".
	Name string
	// Module names the audit rows, empty disables auditing.
	Module string
	Store  ResourceStore[T]
	Audit  *AuditService
	// Tenants is required when rows implement model.TenantOwned.
	Tenants TenantDirectory
	// Scoped narrows reads to the caller's tenant.
	Scoped bool
	// ReadOnly lists extra json keys dropped from create and update bodies.
	ReadOnly []string
	// CheckBody inspects the raw create or update body before it is decoded.
	CheckBody func(body []byte) error

	BeforeCreate Hook[T]
	// BeforeUpdate sees the stored row as old and the merged row as v.
	BeforeUpdate func(ctx context.Context, actor *model.Actor, old, v *T) error
	// AfterWrite runs inside the write transaction, old is nil on create.
	AfterWrite func(ctx context.Context, actor *model.Actor, old, v *T) error
	// Delete replaces the default delete. A non-empty message is returned to
	// the client with 200 instead of 204.
	Delete func(ctx context.Context, actor *model.Actor, v *T) (string, error)
}

// Resource implements list/get/create/update/delete for one flat table with
// tenant scoping, validation and audit logging.
type Resource[T any] struct {
	cfg ResourceConfig[T]
}

func NewResource[T any](cfg ResourceConfig[T]) *Resource[T] {
	return &Resource[T]{cfg: cfg}
}

func (r *Resource[T]) Name() string { return r.cfg.Name }

var readOnlyKeys = []string{
	"id", "created_at", "updated_at", "tenant_id",
	"uuid", "application_id", "account_id", "check_id", "flag_id",
}

// createReadOnlyKeys are dropped from create bodies. tenant_id stays so
// masters can create rows for a tenant.
var createReadOnlyKeys = []string{
	"id", "created_at", "updated_at", "is_deleted",
	"uuid", "application_id", "account_id", "check_id", "flag_id",
}

func (r *Resource[T]) List(ctx context.Context, actor *model.Actor, q model.ListQuery) (*model.ListResult[T], error) {
	if r.cfg.Scoped {
		tid, err := readScope(actor, q.TenantID)
		if err != nil {
			return nil, err
		}
		q.TenantID = tid
	} else {
		q.TenantID = nil
	}
	items, total, err := r.cfg.Store.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &model.ListResult[T]{Items: items, Total: total}, nil
}

func (r *Resource[T]) Get(ctx context.Context, actor *model.Actor, key string) (*T, error) {
	// masters address any row by key
	var tid *int64
	if r.cfg.Scoped && !actor.IsMaster() {
		if actor.TenantID == nil {
			return nil, ErrNoTenant
		}
		tid = actor.TenantID
	}
	v, err := r.cfg.Store.Get(ctx, key, tid)
	if err != nil {
		return nil, storeError(err, r.cfg.Name)
	}
	return v, nil
}

func (r *Resource[T]) Create(ctx context.Context, actor *model.Actor, body []byte) (*T, error) {
	v := new(T)
	if d, ok := any(v).(model.Defaulter); ok {
		d.ApplyDefaults()
	}
	body, err := stripKeys(body, append(createReadOnlyKeys, r.cfg.ReadOnly...))
	if err != nil {
		return nil, err
	}
	if err := r.checkBody(body); err != nil {
		return nil, err
	}
	if err := decodeBody(body, v); err != nil {
		return nil, err
	}
	if owned, ok := any(v).(model.TenantOwned); ok && r.cfg.Tenants != nil {
		tid, err := writeTenant(ctx, r.cfg.Tenants, actor, owned.OwnerTenant())
		if err != nil {
			return nil, err
		}
		owned.AssignTenant(tid)
	}
	if c, ok := any(v).(model.Catalog); ok {
		c.SetUUID(uuid.NewString())
		c.StampCreated(actor.Identity())
	}
	if r.cfg.BeforeCreate != nil {
		if err := r.cfg.BeforeCreate(ctx, actor, v); err != nil {
			return nil, err
		}
	}
	if err := Check(v); err != nil {
		return nil, err
	}

	err = r.cfg.Store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.cfg.Store.Create(ctx, v); err != nil {
			return storeError(err, r.cfg.Name)
		}
		if r.cfg.AfterWrite != nil {
			if err := r.cfg.AfterWrite(ctx, actor, nil, v); err != nil {
				return err
			}
		}
		return r.audit(ctx, actor, model.ActionCreate, "Created "+r.cfg.Name)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Update merges body over the stored row. Read-only keys in body are ignored.
func (r *Resource[T]) Update(ctx context.Context, actor *model.Actor, key string, body []byte) (*T, error) {
	v, err := r.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	patch, err := stripKeys(body, append(readOnlyKeys, r.cfg.ReadOnly...))
	if err != nil {
		return nil, err
	}
	if err := r.checkBody(patch); err != nil {
		return nil, err
	}
	old := *v
	if err := decodeBody(patch, v); err != nil {
		return nil, err
	}
	if c, ok := any(v).(model.Catalog); ok {
		c.StampModified(actor.Identity())
	}
	if r.cfg.BeforeUpdate != nil {
		if err := r.cfg.BeforeUpdate(ctx, actor, &old, v); err != nil {
			return nil, err
		}
	}
	if err := Check(v); err != nil {
		return nil, err
	}

	err = r.cfg.Store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := r.cfg.Store.Update(ctx, v); err != nil {
			return storeError(err, r.cfg.Name)
		}
		if r.cfg.AfterWrite != nil {
			if err := r.cfg.AfterWrite(ctx, actor, &old, v); err != nil {
				return err
			}
		}
		return r.audit(ctx, actor, model.ActionUpdate, "Updated "+r.cfg.Name)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Delete removes the row addressed by key. Catalog rows are soft deleted and
// return a confirmation message.
func (r *Resource[T]) Delete(ctx context.Context, actor *model.Actor, key string) (string, error) {
	v, err := r.Get(ctx, actor, key)
	if err != nil {
		return "", err
	}
	var msg string
	err = r.cfg.Store.WithinTransaction(ctx, func(ctx context.Context) error {
		switch c, isCatalog := any(v).(model.Catalog); {
		case r.cfg.Delete != nil:
			m, err := r.cfg.Delete(ctx, actor, v)
			if err != nil {
				return err
			}
			msg = m
		case isCatalog:
			c.MarkDeleted(actor.Identity())
			if err := r.cfg.Store.Update(ctx, v); err != nil {
				return storeError(err, r.cfg.Name)
			}
			msg = r.cfg.Name + " deleted successfully"
		default:
			if err := r.cfg.Store.Delete(ctx, v); err != nil {
				return storeError(err, r.cfg.Name)
			}
		}
		return r.audit(ctx, actor, model.ActionDelete, "Deleted "+r.cfg.Name)
	})
	return msg, err
}

func (r *Resource[T]) checkBody(body []byte) error {
	if r.cfg.CheckBody == nil || len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return r.cfg.CheckBody(body)
}

func (r *Resource[T]) audit(ctx context.Context, actor *model.Actor, action model.ActionType, desc string) error {
	if r.cfg.Module == "" || r.cfg.Audit == nil {
		return nil
	}
	return r.cfg.Audit.Record(ctx, actor, action, r.cfg.Module, desc)
}

// Check runs struct tag validation and the row's own Check method, if any.
func Check(v any) error {
	fields := validate.Struct(v)
	if c, ok := v.(interface{ Check() map[string]string }); ok {
		for k, msg := range c.Check() {
			if fields == nil {
				fields = map[string]string{}
			}
			if _, seen := fields[k]; !seen {
				fields[k] = msg
			}
		}
	}
	if len(fields) > 0 {
		return InvalidFields(fields)
	}
	return nil
}

func decodeBody(body []byte, v any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return Invalid("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return Invalid(bodyError(err))
	}
	return nil
}

func bodyError(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return "invalid value for " + te.Field
	}
	return err.Error()
}

func stripKeys(body []byte, keys []string) ([]byte, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, Invalid("request body is required")
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil || m == nil {
		return nil, Invalid("request body must be a JSON object")
	}
	for _, k := range keys {
		delete(m, k)
	}
	return json.Marshal(m)
}
