package models

import (
	"time"
)

// LeaseStatus представляет статус договора аренды
type LeaseStatus string

const (
	LeaseStatusPendingTenant   LeaseStatus = "pending_tenant"   // Ожидает подписи арендатора
	LeaseStatusPendingLandlord LeaseStatus = "pending_landlord" // Ожидает подписи арендодателя
	LeaseStatusFullySigned     LeaseStatus = "fully_signed"     // Подписан обеими сторонами
	LeaseStatusActive          LeaseStatus = "active"           // Активирован (подписи + обязательные платежи)
	LeaseStatusTerminated      LeaseStatus = "terminated"       // Расторгнут досрочно
	LeaseStatusExpired         LeaseStatus = "expired"          // Истек по сроку
)

// SignerRole представляет сторону, подписывающую договор
type SignerRole string

const (
	SignerRoleTenant   SignerRole = "tenant"
	SignerRoleLandlord SignerRole = "landlord"
)

// Lease представляет договор аренды между арендатором и объектом недвижимости
type Lease struct {
	ID                  uint                `gorm:"primaryKey;autoIncrement"`
	TenantID            uint                `gorm:"column:tenant_id;not null;index"`
	Tenant              User                `gorm:"foreignKey:TenantID;references:ID"`
	PropertyID          uint                `gorm:"column:property_id;not null;index"`
	Property            Property            `gorm:"foreignKey:PropertyID;references:ID"`
	MonthlyRentUSDC     float64             `gorm:"column:monthly_rent_usdc;type:decimal(20,2);not null"`
	SecurityDepositUSDC float64             `gorm:"column:security_deposit_usdc;type:decimal(20,2);not null"`
	StartDate           time.Time           `gorm:"column:start_date;not null"`
	EndDate             time.Time           `gorm:"column:end_date;not null"`
	RentDueDay          int                 `gorm:"column:rent_due_day;not null;default:1"` // День месяца для оплаты аренды (1-31)
	DocumentHash        string              `gorm:"column:document_hash;size:64"`           // SHA-256 от условий договора
	TenantSignature     *string             `gorm:"column:tenant_signature;type:text"`
	TenantSignedAt      *time.Time          `gorm:"column:tenant_signed_at"`
	LandlordSignature   *string             `gorm:"column:landlord_signature;type:text"`
	LandlordSignedAt    *time.Time          `gorm:"column:landlord_signed_at"`
	TenantWallet        string              `gorm:"column:tenant_wallet;size:64"`
	LandlordWallet      string              `gorm:"column:landlord_wallet;size:64"`
	Status              LeaseStatus         `gorm:"column:status;type:varchar(20);not null;default:'pending_tenant';index"`
	ActivatedAt         *time.Time          `gorm:"column:activated_at"`
	Obligations         []PaymentObligation `gorm:"foreignKey:LeaseID"`
	CreatedAt           time.Time           `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Lease) TableName() string {
	return "leases"
}

// TenantSigned возвращает true, если арендатор подписал договор
func (l *Lease) TenantSigned() bool {
	return l.TenantSignedAt != nil
}

// LandlordSigned возвращает true, если арендодатель подписал договор
func (l *Lease) LandlordSigned() bool {
	return l.LandlordSignedAt != nil
}

// Signable возвращает true, если договор еще находится в фазе подписания
func (l *Lease) Signable() bool {
	switch l.Status {
	case LeaseStatusPendingTenant, LeaseStatusPendingLandlord, LeaseStatusFullySigned:
		return true
	}
	return false
}

// ComputeLeaseStatus вычисляет статус договора как чистую функцию от наличия
// подписей, завершенности активационных платежей и флага расторжения.
// Статус никогда не пересчитывается "назад": расторжение имеет приоритет,
// активация возможна только при обеих подписях.
func ComputeLeaseStatus(tenantSigned, landlordSigned, paymentsComplete, terminated bool) LeaseStatus {
	switch {
	case terminated:
		return LeaseStatusTerminated
	case tenantSigned && landlordSigned && paymentsComplete:
		return LeaseStatusActive
	case tenantSigned && landlordSigned:
		return LeaseStatusFullySigned
	case tenantSigned:
		return LeaseStatusPendingLandlord
	case landlordSigned:
		return LeaseStatusPendingTenant
	default:
		// До первой подписи договор условно ждет арендатора
		return LeaseStatusPendingTenant
	}
}
