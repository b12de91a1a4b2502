package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
)

// CartRecord is the session layer's handoff into checkout. The core reads it at
// reservation time and clears it when the order confirms.
type CartRecord struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status    enums.CartStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
