package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope restricts a query to the rows visible to one tenant.
type Scope func(db *gorm.DB, tenantID int64) *gorm.DB

// ScopeByApplication scopes rows that hang off a loan application.
func ScopeByApplication(db *gorm.DB, tenantID int64) *gorm.DB {
	return db.Where("loan_application_id IN (SELECT id FROM loan_applications WHERE tenant_id = ?)", tenantID)
}

// ScopeByAccount scopes rows that hang off a loan account.
func ScopeByAccount(db *gorm.DB, tenantID int64) *gorm.DB {
	return db.Where(`loan_account_id IN (
		SELECT acc.id FROM loan_accounts acc
		JOIN loan_applications app ON app.id = acc.loan_application_id
		WHERE app.tenant_id = ?)`, tenantID)
}

type StoreOptions struct {
	// SearchColumns are matched case-insensitively with LIKE for ?search=.
	SearchColumns []string
	// Filters maps a query parameter to the column it compares for equality.
	Filters map[string]string
	Order   string
	Preload []string
	// Joins and Select are applied to reads, Select only when rows are fetched.
	Joins  []string
	Select string
	// LookupColumn addresses single rows, "id" when empty.
	LookupColumn string
	// SoftDelete hides is_deleted rows from lists.
	SoftDelete bool
	// TenantScope overrides the default "<table>.tenant_id = ?" restriction.
	TenantScope Scope
}

// Store is the gorm repository shared by the flat CRUD tables.
type Store[T any] struct {
	*pg.DB
	table string
	opts  StoreOptions
}

func NewStore[T any](db *pg.DB, opts StoreOptions) *Store[T] {
	var zero T
	table := ""
	if tn, ok := any(&zero).(interface{ TableName() string }); ok {
		table = tn.TableName()
	}
	if opts.LookupColumn == "" {
		opts.LookupColumn = "id"
	}
	if opts.Order == "" {
		opts.Order = table + ".id DESC"
	}
	return &Store[T]{DB: db, table: table, opts: opts}
}

func (s *Store[T]) col(name string) string {
	if s.table == "" {
		return name
	}
	return s.table + "." + name
}

func (s *Store[T]) read(ctx context.Context) *gorm.DB {
	db := s.Read(ctx).Model(new(T))
	for _, j := range s.opts.Joins {
		db = db.Joins(j)
	}
	return db
}

func (s *Store[T]) fetch(db *gorm.DB) *gorm.DB {
	if s.opts.Select != "" {
		db = db.Select(s.opts.Select)
	}
	for _, p := range s.opts.Preload {
		db = db.Preload(p)
	}
	return db
}

func (s *Store[T]) scope(db *gorm.DB, tenantID *int64) *gorm.DB {
	if tenantID == nil {
		return db
	}
	if s.opts.TenantScope != nil {
		return s.opts.TenantScope(db, *tenantID)
	}
	return db.Where(s.col("tenant_id")+" = ?", *tenantID)
}

func (s *Store[T]) List(ctx context.Context, q model.ListQuery) ([]*T, int64, error) {
	db := s.scope(s.read(ctx), q.TenantID)
	if s.opts.SoftDelete && !q.IncludeDeleted {
		db = db.Where(s.col("is_deleted")+" = ?", false)
	}
	if term := strings.TrimSpace(q.Search); term != "" && len(s.opts.SearchColumns) > 0 {
		like := "%" + strings.ToLower(term) + "%"
		parts := make([]string, len(s.opts.SearchColumns))
		args := make([]any, len(s.opts.SearchColumns))
		for i, c := range s.opts.SearchColumns {
			parts[i] = "LOWER(" + c + ") LIKE ?"
			args[i] = like
		}
		db = db.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
	for key, val := range q.Filters {
		if column, ok := s.opts.Filters[key]; ok && val != "" {
			db = db.Where(column+" = ?", val)
		}
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := q.Page()
	items := make([]*T, 0)
	if err := s.fetch(db).Order(s.opts.Order).Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get loads one row by the lookup column. A non-nil tenantID hides rows of
// other tenants.
func (s *Store[T]) Get(ctx context.Context, key string, tenantID *int64) (*T, error) {
	db := s.scope(s.read(ctx), tenantID)
	if s.opts.LookupColumn == "id" {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, ErrNotFound
		}
		db = db.Where(s.col("id")+" = ?", id)
	} else {
		db = db.Where(s.col(s.opts.LookupColumn)+" = ?", key)
	}
	var v T
	if err := s.fetch(db).Take(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (s *Store[T]) GetByID(ctx context.Context, id int64, tenantID *int64) (*T, error) {
	db := s.scope(s.read(ctx), tenantID).Where(s.col("id")+" = ?", id)
	var v T
	if err := s.fetch(db).Take(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

// Lock reads a row with SELECT ... FOR UPDATE, it must run inside WithinTransaction.
func (s *Store[T]) Lock(ctx context.Context, id int64) (*T, error) {
	var v T
	err := s.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(s.col("id")+" = ?", id).
		Take(&v).
		Error
	if err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func (s *Store[T]) Create(ctx context.Context, v *T) error {
	return translate(s.Write(ctx).Omit(clause.Associations).Create(v).Error)
}

func (s *Store[T]) Update(ctx context.Context, v *T) error {
	return translate(s.Write(ctx).Omit(clause.Associations).Save(v).Error)
}

func (s *Store[T]) Delete(ctx context.Context, v *T) error {
	res := s.Write(ctx).Delete(v)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAssociation swaps the many2many set named assoc of v for values.
func (s *Store[T]) ReplaceAssociation(ctx context.Context, v *T, assoc string, values any) error {
	a := s.Write(ctx).Model(v).Association(assoc)
	if a.Error != nil {
		return a.Error
	}
	return translate(a.Replace(values))
}

// Exists reports whether a row matches column = value, ignoring the row with id except.
func (s *Store[T]) Exists(ctx context.Context, column string, value any, except int64) (bool, error) {
	var n int64
	err := s.Read(ctx).Model(new(T)).
		Where(s.col(column)+" = ?", value).
		Where(s.col("id")+" <> ?", except).
		Count(&n).Error
	return n > 0, err
}

// FindByColumn loads every E whose column is in values.
func FindByColumn[E any, V any](ctx context.Context, db *pg.DB, column string, values []V) ([]*E, error) {
	out := make([]*E, 0, len(values))
	if len(values) == 0 {
		return out, nil
	}
	err := db.Read(ctx).Where(column+" IN ?", values).Find(&out).Error
	return out, err
}
