package models

import (
	"time"
)

// ObligationType представляет вид платежного обязательства по договору
type ObligationType string

const (
	ObligationTypeSecurityDeposit ObligationType = "security_deposit" // Страховой депозит
	ObligationTypeRent            ObligationType = "rent"             // Ежемесячная аренда
	ObligationTypeOther           ObligationType = "other"            // Прочие платежи
)

// ObligationStatus представляет статус платежного обязательства
type ObligationStatus string

const (
	ObligationStatusPending    ObligationStatus = "pending"    // Ожидает оплаты
	ObligationStatusLate       ObligationStatus = "late"       // Просрочено
	ObligationStatusProcessing ObligationStatus = "processing" // Платеж отправлен в платежную систему
	ObligationStatusCompleted  ObligationStatus = "completed"  // Оплачено (терминальный)
	ObligationStatusFailed     ObligationStatus = "failed"     // Платеж отклонен (терминальный)
)

// PaymentObligation представляет платежное обязательство по договору аренды
type PaymentObligation struct {
	ID            uint             `gorm:"primaryKey;autoIncrement"`
	LeaseID       uint             `gorm:"column:lease_id;not null;index"`
	Lease         Lease            `gorm:"foreignKey:LeaseID;references:ID"`
	TenantID      uint             `gorm:"column:tenant_id;not null;index"`
	Tenant        User             `gorm:"foreignKey:TenantID;references:ID"`
	Type          ObligationType   `gorm:"column:type;type:varchar(20);not null"`
	AmountUSDC    float64          `gorm:"column:amount_usdc;type:decimal(20,2);not null"`
	DueDate       time.Time        `gorm:"column:due_date;not null;index"`
	Status        ObligationStatus `gorm:"column:status;type:varchar(15);not null;default:'pending';index"`
	PaidAt        *time.Time       `gorm:"column:paid_at"`
	SettlementRef string           `gorm:"column:settlement_ref;size:64;index"` // Ссылка на расчет в платежной системе
	Notes         string           `gorm:"column:notes;size:255"`               // Причина отклонения и прочие пометки
	CreatedAt     time.Time        `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (PaymentObligation) TableName() string {
	return "payment_obligations"
}

// Terminal возвращает true, если обязательство находится в конечном статусе
func (p *PaymentObligation) Terminal() bool {
	return p.Status == ObligationStatusCompleted || p.Status == ObligationStatusFailed
}

// Payable возвращает true, если по обязательству можно инициировать платеж
func (p *PaymentObligation) Payable() bool {
	return p.Status == ObligationStatusPending || p.Status == ObligationStatusLate
}
