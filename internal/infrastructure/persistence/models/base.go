package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel provides the primary key and timestamps shared by all tables.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns a random ID when the caller did not supply one.
func (m *BaseModel) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ParseID converts a record ID into a UUID. Empty and malformed IDs yield
// uuid.Nil so lookups simply find nothing.
func ParseID(id string) uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

// All returns every persistence model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&MemberTypeModel{},
		&MemberModel{},
		&InvoiceModel{},
		&LineItemModel{},
	}
}
