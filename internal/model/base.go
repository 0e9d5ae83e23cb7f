package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/lending-admin/pkg/pg"
)

type Model = pg.Model

// TenantRef is embedded by rows that belong to exactly one tenant.
type TenantRef struct {
	TenantID int64 `json:"tenant_id" gorm:"column:tenant_id;not null;index"`
}

func (t TenantRef) OwnerTenant() int64 { return t.TenantID }
func (t *TenantRef) AssignTenant(id int64) { t.TenantID = id }

// TenantOwned is implemented by every directly tenant-scoped row.
type TenantOwned interface {
	OwnerTenant() int64
	AssignTenant(id int64)
}

// CatalogMeta is shared by the admin catalog tables that are addressed by
// uuid and soft deleted.
type CatalogMeta struct {
	UUID         string `json:"uuid"          gorm:"column:uuid;size:36;uniqueIndex;not null"`
	IsDeleted    bool   `json:"is_deleted"    gorm:"column:is_deleted;not null;default:false"`
	CreatedUser  string `json:"created_user"  gorm:"column:created_user"`
	ModifiedUser string `json:"modified_user" gorm:"column:modified_user"`
}

func (c CatalogMeta) GetUUID() string { return c.UUID }
func (c *CatalogMeta) SetUUID(v string) { c.UUID = v }
func (c *CatalogMeta) StampCreated(by string) { c.CreatedUser, c.ModifiedUser = by, by }
func (c *CatalogMeta) StampModified(by string) { c.ModifiedUser = by }
func (c *CatalogMeta) MarkDeleted(by string) { c.IsDeleted, c.ModifiedUser = true, by }
func (c CatalogMeta) Deleted() bool { return c.IsDeleted }

type Catalog interface {
	GetUUID() string
	SetUUID(v string)
	StampCreated(by string)
	StampModified(by string)
	MarkDeleted(by string)
}

// Defaulter fills column defaults before a create body is decoded over the row.
type Defaulter interface {
	ApplyDefaults()
}

// Date is a calendar day, rendered as YYYY-MM-DD in json.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(y int, m time.Month, d int) Date {
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
		}
	}
	d.Time = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
	case time.Time:
		d.Time = v.UTC()
	case string:
		return d.UnmarshalJSON([]byte(v))
	case []byte:
		return d.UnmarshalJSON(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

func (Date) GormDataType() string { return "date" }
