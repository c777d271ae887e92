package models

import (
	"time"
)

// Property представляет объект недвижимости, принадлежащий арендодателю
type Property struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	OwnerID         uint      `gorm:"column:owner_id;not null;index"`
	Owner           User      `gorm:"foreignKey:OwnerID;references:ID"`
	Title           string    `gorm:"column:title;not null;size:100"`
	Address         string    `gorm:"column:address;not null;size:255"`
	MonthlyRentUSDC float64   `gorm:"column:monthly_rent_usdc;type:decimal(20,2);not null;default:0.0"`
	Leases          []Lease   `gorm:"foreignKey:PropertyID"`
	CreatedAt       time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Property) TableName() string {
	return "properties"
}
