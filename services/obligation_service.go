package services

import (
	"errors"
	"fmt"
	"time"

	"rentflow/models"

	"gorm.io/gorm"
)

// ObligationDTO представляет данные платежного обязательства
type ObligationDTO struct {
	ID            uint       `json:"id"`
	LeaseID       uint       `json:"lease_id"`
	Type          string     `json:"type"`
	AmountUSDC    float64    `json:"amount_usdc"`
	DueDate       time.Time  `json:"due_date"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	SettlementRef string     `json:"settlement_ref,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// ObligationService предоставляет методы для работы с платежными обязательствами
type ObligationService struct {
	db *gorm.DB
}

// NewObligationService создает новый экземпляр ObligationService
func NewObligationService(db *gorm.DB) *ObligationService {
	return &ObligationService{db: db}
}

// normalizeToDay обрезает время до начала суток в UTC.
// Сроки обязательств сравниваются как календарные даты.
func normalizeToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// toObligationDTO конвертирует модель PaymentObligation в DTO
func toObligationDTO(obligation models.PaymentObligation) ObligationDTO {
	return ObligationDTO{
		ID:            obligation.ID,
		LeaseID:       obligation.LeaseID,
		Type:          string(obligation.Type),
		AmountUSDC:    obligation.AmountUSDC,
		DueDate:       obligation.DueDate,
		Status:        string(obligation.Status),
		PaidAt:        obligation.PaidAt,
		SettlementRef: obligation.SettlementRef,
		Notes:         obligation.Notes,
	}
}

// EnsureActivationObligations создает пару активационных обязательств:
// страховой депозит со сроком сегодня и аренду за первый месяц со сроком
// на дату начала договора. Повторный вызов досоздает только отсутствующие
// обязательства, поэтому операция идемпотентна. Нулевой депозит обязательства
// не порождает.
func (s *ObligationService) EnsureActivationObligations(tx *gorm.DB, lease *models.Lease) (int, error) {
	created := 0

	// Проверяем наличие обязательства по депозиту
	if lease.SecurityDepositUSDC > 0 {
		var deposit models.PaymentObligation
		err := tx.Where("lease_id = ? AND type = ?", lease.ID, models.ObligationTypeSecurityDeposit).
			First(&deposit).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, fmt.Errorf("ошибка при поиске обязательства по депозиту: %v", err)
		}

		if errors.Is(err, gorm.ErrRecordNotFound) {
			obligation := &models.PaymentObligation{
				LeaseID:    lease.ID,
				TenantID:   lease.TenantID,
				Type:       models.ObligationTypeSecurityDeposit,
				AmountUSDC: lease.SecurityDepositUSDC,
				DueDate:    normalizeToDay(time.Now()),
				Status:     models.ObligationStatusPending,
			}
			if err := tx.Create(obligation).Error; err != nil {
				return created, fmt.Errorf("ошибка при создании обязательства по депозиту: %v", err)
			}
			created++
		}
	}

	// Проверяем наличие обязательства за первый месяц аренды
	var firstRent models.PaymentObligation
	err := tx.Where("lease_id = ? AND type = ? AND due_date = ?",
		lease.ID, models.ObligationTypeRent, normalizeToDay(lease.StartDate)).
		First(&firstRent).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return created, fmt.Errorf("ошибка при поиске обязательства за первый месяц: %v", err)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		obligation := &models.PaymentObligation{
			LeaseID:    lease.ID,
			TenantID:   lease.TenantID,
			Type:       models.ObligationTypeRent,
			AmountUSDC: lease.MonthlyRentUSDC,
			DueDate:    normalizeToDay(lease.StartDate),
			Status:     models.ObligationStatusPending,
		}
		if err := tx.Create(obligation).Error; err != nil {
			return created, fmt.Errorf("ошибка при создании обязательства за первый месяц: %v", err)
		}
		created++
	}

	return created, nil
}

// ActivationPaymentsComplete проверяет, завершены ли оба активационных платежа:
// страховой депозит и аренда за первый месяц. Нулевой депозит считается оплаченным.
func (s *ObligationService) ActivationPaymentsComplete(tx *gorm.DB, lease *models.Lease) (bool, error) {
	// Проверяем завершенность депозита
	if lease.SecurityDepositUSDC > 0 {
		var depositCount int64
		if err := tx.Model(&models.PaymentObligation{}).
			Where("lease_id = ? AND type = ? AND status = ?",
				lease.ID, models.ObligationTypeSecurityDeposit, models.ObligationStatusCompleted).
			Count(&depositCount).Error; err != nil {
			return false, fmt.Errorf("ошибка при проверке депозита: %v", err)
		}

		if depositCount == 0 {
			return false, nil
		}
	}

	// Проверяем завершенность аренды за первый месяц
	var rentCount int64
	if err := tx.Model(&models.PaymentObligation{}).
		Where("lease_id = ? AND type = ? AND due_date = ? AND status = ?",
			lease.ID, models.ObligationTypeRent, normalizeToDay(lease.StartDate), models.ObligationStatusCompleted).
		Count(&rentCount).Error; err != nil {
		return false, fmt.Errorf("ошибка при проверке аренды за первый месяц: %v", err)
	}

	return rentCount > 0, nil
}

// RentExistsForMonth проверяет, есть ли у договора арендное обязательство
// в указанном календарном месяце. Отклоненные обязательства не учитываются,
// так как вместо них создается замена.
func (s *ObligationService) RentExistsForMonth(tx *gorm.DB, leaseID uint, year int, month time.Month) (bool, error) {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	nextMonthStart := monthStart.AddDate(0, 1, 0)

	var count int64
	if err := tx.Model(&models.PaymentObligation{}).
		Where("lease_id = ? AND type = ? AND status <> ? AND due_date >= ? AND due_date < ?",
			leaseID, models.ObligationTypeRent, models.ObligationStatusFailed, monthStart, nextMonthStart).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("ошибка при проверке арендных обязательств месяца: %v", err)
	}

	return count > 0, nil
}

// GetObligationsByLeaseID возвращает все обязательства договора
// в порядке наступления сроков
func (s *ObligationService) GetObligationsByLeaseID(leaseID uint) ([]ObligationDTO, error) {
	var obligations []models.PaymentObligation
	if err := s.db.Where("lease_id = ?", leaseID).
		Order("due_date ASC, id ASC").
		Find(&obligations).Error; err != nil {
		return nil, fmt.Errorf("ошибка при получении обязательств договора: %v", err)
	}

	dtos := make([]ObligationDTO, len(obligations))
	for i, obligation := range obligations {
		dtos[i] = toObligationDTO(obligation)
	}

	return dtos, nil
}
