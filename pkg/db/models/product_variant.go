package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/enums"
	"github.com/Ibrahim-Mneimneh/Shop.Co-sub000/pkg/types"
)

// ProductVariant is a purchasable color/style of a product. Variants are never
// deleted, only deactivated.
type ProductVariant struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	Product     *Product           `gorm:"foreignKey:ProductID"`
	Color       string             `gorm:"column:color;not null"`
	StockStatus enums.StockStatus  `gorm:"column:stock_status;type:text;not null;default:'in_stock'"`
	IsOnSale    bool               `gorm:"column:is_on_sale;not null;default:false"`
	SaleOptions *types.SaleOptions `gorm:"column:sale_options;type:jsonb;serializer:json"`
	UnitsSold   int                `gorm:"column:units_sold;not null;default:0"`
	IsActive    bool               `gorm:"column:is_active;not null;default:true"`
	Sizes       []VariantSize      `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
