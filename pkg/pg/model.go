package pg

import (
	"time"
)

// Model is the common primary key and timestamp set embedded by every table.
type Model struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

func (m Model) GetID() int64 { return m.ID }
