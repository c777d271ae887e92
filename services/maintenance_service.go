package services

import (
	"fmt"
	"time"

	"rentflow/models"
	"rentflow/utils"

	"gorm.io/gorm"
)

// MaintenanceReport представляет итог ежедневного обслуживания
type MaintenanceReport struct {
	RentCreated   int   `json:"rent_created"`
	RentErrors    int   `json:"rent_errors"`
	MarkedLate    int64 `json:"marked_late"`
	LeasesExpired int64 `json:"leases_expired"`
}

// MaintenanceService выполняет ежедневное обслуживание обязательств и договоров.
// Сервис не содержит собственных таймеров: запуск всегда приходит извне,
// из cron через CLI либо через служебный HTTP-эндпоинт.
type MaintenanceService struct {
	db           *gorm.DB
	obligations  *ObligationService
	windowMonths int
}

// NewMaintenanceService создает новый экземпляр MaintenanceService
func NewMaintenanceService(db *gorm.DB, obligations *ObligationService, windowMonths int) *MaintenanceService {
	return &MaintenanceService{
		db:           db,
		obligations:  obligations,
		windowMonths: windowMonths,
	}
}

// rentDueDateFor возвращает срок аренды в указанном месяце с поджатием
// дня к последнему дню короткого месяца
func rentDueDateFor(year int, month time.Month, dueDay int) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := dueDay
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// RunDaily выполняет полный цикл обслуживания: генерацию предстоящей аренды,
// пометку просроченных обязательств и завершение истекших договоров.
// Шаги независимы: сбой одного не останавливает остальные.
func (s *MaintenanceService) RunDaily(now time.Time) (*MaintenanceReport, error) {
	start := time.Now()
	report := &MaintenanceReport{}
	var firstErr error

	// Генерируем арендные обязательства на ближайшие месяцы
	created, rentErrors, err := s.generateUpcomingRent(now)
	report.RentCreated = created
	report.RentErrors = rentErrors
	if err != nil && firstErr == nil {
		firstErr = err
	}

	// Помечаем просроченные обязательства
	marked, err := s.markOverdue(now)
	report.MarkedLate = marked
	if err != nil && firstErr == nil {
		firstErr = err
	}

	// Завершаем истекшие договоры
	expired, err := s.expireLeases(now)
	report.LeasesExpired = expired
	if err != nil && firstErr == nil {
		firstErr = err
	}

	utils.LogOperation("daily_maintenance", start, firstErr)

	return report, firstErr
}

// generateUpcomingRent создает арендные обязательства для активных договоров
// на текущий и следующие месяцы окна. Ошибки обрабатываются по-договорно:
// сбой одного договора не прерывает обход остальных.
func (s *MaintenanceService) generateUpcomingRent(now time.Time) (int, int, error) {
	var leases []models.Lease
	if err := s.db.Where("status = ?", models.LeaseStatusActive).Find(&leases).Error; err != nil {
		return 0, 0, fmt.Errorf("ошибка при получении активных договоров: %v", err)
	}

	created := 0
	errCount := 0

	for i := range leases {
		n, err := s.generateRentForLease(&leases[i], now)
		created += n
		if err != nil {
			utils.LogError("генерация аренды для договора %d: %v", leases[i].ID, err)
			utils.GetMetrics().RecordError(err)
			errCount++
		}
	}

	return created, errCount, nil
}

// generateRentForLease создает недостающие арендные обязательства одного
// договора в пределах окна генерации
func (s *MaintenanceService) generateRentForLease(lease *models.Lease, now time.Time) (int, error) {
	created := 0

	for offset := 0; offset < s.windowMonths; offset++ {
		// Целевой месяц: нормализация по первому числу
		target := time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
		due := rentDueDateFor(target.Year(), target.Month(), lease.RentDueDay)

		// Сроки за пределами действия договора не порождают обязательств
		if due.Before(normalizeToDay(lease.StartDate)) || due.After(normalizeToDay(lease.EndDate)) {
			continue
		}

		// Один арендный платеж на договор в календарный месяц
		exists, err := s.obligations.RentExistsForMonth(s.db, lease.ID, target.Year(), target.Month())
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		obligation := &models.PaymentObligation{
			LeaseID:    lease.ID,
			TenantID:   lease.TenantID,
			Type:       models.ObligationTypeRent,
			AmountUSDC: lease.MonthlyRentUSDC,
			DueDate:    due,
			Status:     models.ObligationStatusPending,
		}
		if err := s.db.Create(obligation).Error; err != nil {
			return created, fmt.Errorf("ошибка при создании арендного обязательства: %v", err)
		}

		created++
		utils.GetMetrics().RecordPaymentOperation("create", nil)
	}

	return created, nil
}

// markOverdue помечает просроченными все ожидающие обязательства,
// срок которых строго раньше сегодняшнего дня. Повторный запуск не находит
// новых строк и потому идемпотентен.
func (s *MaintenanceService) markOverdue(now time.Time) (int64, error) {
	today := normalizeToDay(now)

	result := s.db.Model(&models.PaymentObligation{}).
		Where("status = ? AND due_date < ?", models.ObligationStatusPending, today).
		Update("status", models.ObligationStatusLate)
	if result.Error != nil {
		return 0, fmt.Errorf("ошибка при пометке просроченных обязательств: %v", result.Error)
	}

	if result.RowsAffected > 0 {
		utils.LogInfo("помечено просроченными обязательств: %d", result.RowsAffected)
	}
	for i := int64(0); i < result.RowsAffected; i++ {
		utils.GetMetrics().RecordPaymentOperation("late", nil)
	}

	return result.RowsAffected, nil
}

// expireLeases завершает активные договоры, срок действия которых истек
func (s *MaintenanceService) expireLeases(now time.Time) (int64, error) {
	today := normalizeToDay(now)

	result := s.db.Model(&models.Lease{}).
		Where("status = ? AND end_date < ?", models.LeaseStatusActive, today).
		Update("status", models.LeaseStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("ошибка при завершении истекших договоров: %v", result.Error)
	}

	if result.RowsAffected > 0 {
		utils.LogInfo("завершено истекших договоров: %d", result.RowsAffected)
	}
	for i := int64(0); i < result.RowsAffected; i++ {
		utils.GetMetrics().RecordLeaseOperation("expire", nil)
	}

	return result.RowsAffected, nil
}
