package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rentflow/models"
	"rentflow/utils"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// PayObligationDTO представляет данные для оплаты обязательства
type PayObligationDTO struct {
	ObligationID uint `json:"-" validate:"required"`
	PayerID      uint `json:"-" validate:"required"`
}

// PaymentResultDTO представляет результат платежной операции
type PaymentResultDTO struct {
	Obligation     ObligationDTO  `json:"obligation"`
	Replacement    *ObligationDTO `json:"replacement,omitempty"`
	LeaseActivated bool           `json:"lease_activated"`
}

// payableStatuses содержит статусы, из которых обязательство может быть
// оплачено или завершено расчетом
var payableStatuses = []models.ObligationStatus{
	models.ObligationStatusPending,
	models.ObligationStatusLate,
	models.ObligationStatusProcessing,
}

// PaymentService предоставляет методы для проведения платежей по обязательствам
type PaymentService struct {
	db          *gorm.DB
	validator   *validator.Validate
	email       *EmailService
	obligations *ObligationService
	users       *UserService
	rail        PaymentRail
}

// NewPaymentService создает новый экземпляр PaymentService
func NewPaymentService(db *gorm.DB, email *EmailService, obligations *ObligationService, users *UserService, rail PaymentRail) *PaymentService {
	return &PaymentService{
		db:          db,
		validator:   validator.New(),
		email:       email,
		obligations: obligations,
		users:       users,
		rail:        rail,
	}
}

// findObligation загружает обязательство вместе с договором и сторонами
func (s *PaymentService) findObligation(tx *gorm.DB, id uint) (*models.PaymentObligation, error) {
	var obligation models.PaymentObligation
	if err := tx.Preload("Lease.Tenant").
		Preload("Lease.Property.Owner").
		First(&obligation, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: платежное обязательство", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: ошибка при поиске платежного обязательства", ErrInternal)
	}
	return &obligation, nil
}

// Pay инициирует оплату обязательства через платежную систему.
// Успешный перевод завершает обязательство и запускает сверку активации.
// Отклоненный перевод переводит обязательство в терминальный статус failed
// и сразу создает замену, чтобы долг не исчезал.
func (s *PaymentService) Pay(dto PayObligationDTO) (*PaymentResultDTO, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
			}
		}
		return nil, errors.New(strings.Join(errorMessages, "; "))
	}

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: ошибка при начале транзакции", ErrInternal)
	}

	// Загружаем обязательство
	obligation, err := s.findObligation(tx, dto.ObligationID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Платить по обязательству может только его арендатор
	if obligation.TenantID != dto.PayerID {
		tx.Rollback()
		return nil, fmt.Errorf("%w: оплата доступна только арендатору по договору", ErrForbidden)
	}

	// Оплатить можно только ожидающее или просроченное обязательство
	if !obligation.Payable() {
		tx.Rollback()
		return nil, fmt.Errorf("%w: обязательство не подлежит оплате", ErrConflict)
	}

	// По завершенному договору платежи не проводятся
	lease := obligation.Lease
	if lease.Status == models.LeaseStatusTerminated || lease.Status == models.LeaseStatusExpired {
		tx.Rollback()
		return nil, fmt.Errorf("%w: договор завершен", ErrConflict)
	}

	// Для перевода средств нужны кошельки обеих сторон
	if lease.TenantWallet == "" || lease.LandlordWallet == "" {
		tx.Rollback()
		return nil, fmt.Errorf("%w: на договоре не указаны кошельки обеих сторон", ErrConflict)
	}

	// Помечаем обязательство как обрабатываемое до обращения к платежной системе
	if err := tx.Model(obligation).Update("status", models.ObligationStatusProcessing).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: ошибка при обновлении статуса обязательства", ErrInternal)
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: ошибка при подтверждении транзакции", ErrInternal)
	}

	utils.GetMetrics().RecordPaymentOperation("initiate", nil)

	// Выполняем перевод через платежную систему
	receipt, railErr := s.rail.TransferFunds(RailTransfer{
		ObligationID: obligation.ID,
		AmountUSDC:   obligation.AmountUSDC,
		FromWallet:   lease.TenantWallet,
		ToWallet:     lease.LandlordWallet,
		Memo:         fmt.Sprintf("lease %d %s", lease.ID, obligation.Type),
	})

	if railErr != nil || !receipt.Accepted {
		reason := "перевод отклонен платежной системой"
		if railErr != nil {
			reason = railErr.Error()
		}
		return s.failObligation(obligation.ID, reason)
	}

	// Перевод прошел, завершаем обязательство и сверяем активацию
	return s.Complete(obligation.ID, receipt.Ref)
}

// failObligation переводит обязательство в терминальный статус failed
// и создает замену с тем же видом, суммой и сроком
func (s *PaymentService) failObligation(obligationID uint, reason string) (*PaymentResultDTO, error) {
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: ошибка при начале транзакции", ErrInternal)
	}

	obligation, err := s.findObligation(tx, obligationID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Фиксируем отклонение
	result := tx.Model(&models.PaymentObligation{}).
		Where("id = ? AND status IN ?", obligation.ID, payableStatuses).
		Updates(map[string]interface{}{
			"status": models.ObligationStatusFailed,
			"notes":  reason,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: ошибка при обновлении обязательства", ErrInternal)
	}

	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: обязательство уже в терминальном статусе", ErrConflict)
	}

	// Создаем замену: отклоненные обязательства не возрождаются
	replacement := &models.PaymentObligation{
		LeaseID:    obligation.LeaseID,
		TenantID:   obligation.TenantID,
		Type:       obligation.Type,
		AmountUSDC: obligation.AmountUSDC,
		DueDate:    obligation.DueDate,
		Status:     models.ObligationStatusPending,
	}
	if err := tx.Create(replacement).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: ошибка при создании замены обязательства", ErrInternal)
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: ошибка при подтверждении транзакции", ErrInternal)
	}

	utils.GetMetrics().RecordPaymentOperation("fail", nil)

	// Уведомляем арендатора об отклоненном платеже
	if err := s.email.SendPaymentNotification(obligation.Lease.Tenant.Email, obligation.ID,
		obligation.AmountUSDC, "отклонен"); err != nil {
		log.Printf("Ошибка при отправке уведомления: %v", err)
	}

	failed, err := s.findObligation(s.db, obligationID)
	if err != nil {
		return nil, err
	}

	failedDTO := toObligationDTO(*failed)
	replacementDTO := toObligationDTO(*replacement)

	return &PaymentResultDTO{
		Obligation:     failedDTO,
		Replacement:    &replacementDTO,
		LeaseActivated: false,
	}, nil
}

// Complete фиксирует завершение расчета по обязательству и сверяет активацию
// договора. Повторная доставка завершения по уже завершенному обязательству
// не имеет эффекта, завершение отклоненного обязательства возвращает конфликт.
func (s *PaymentService) Complete(obligationID uint, settlementRef string) (*PaymentResultDTO, error) {
	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: ошибка при начале транзакции", ErrInternal)
	}

	// Загружаем обязательство
	obligation, err := s.findObligation(tx, obligationID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Повторная доставка завершения не имеет эффекта
	if obligation.Status == models.ObligationStatusCompleted {
		tx.Rollback()
		dto := toObligationDTO(*obligation)
		return &PaymentResultDTO{Obligation: dto, LeaseActivated: false}, nil
	}

	// Отклоненное обязательство заменено и завершению не подлежит
	if obligation.Status == models.ObligationStatusFailed {
		tx.Rollback()
		return nil, fmt.Errorf("%w: обязательство отклонено и заменено", ErrConflict)
	}

	// Завершаем обязательство. Фильтр по статусу защищает от гонки
	// одновременных доставок: выигрывает ровно одна.
	now := time.Now()
	result := tx.Model(&models.PaymentObligation{}).
		Where("id = ? AND status IN ?", obligation.ID, payableStatuses).
		Updates(map[string]interface{}{
			"status":         models.ObligationStatusCompleted,
			"paid_at":        now,
			"settlement_ref": settlementRef,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: ошибка при завершении обязательства", ErrInternal)
	}

	if result.RowsAffected == 0 {
		// Статус изменился параллельно: перечитываем и решаем заново
		tx.Rollback()
		current, err := s.findObligation(s.db, obligationID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.ObligationStatusCompleted {
			dto := toObligationDTO(*current)
			return &PaymentResultDTO{Obligation: dto, LeaseActivated: false}, nil
		}
		return nil, fmt.Errorf("%w: обязательство уже в терминальном статусе", ErrConflict)
	}

	// Сверяем активацию: договор активируется, когда он полностью подписан,
	// а страховой депозит и аренда за первый месяц завершены
	activated := false
	lease := obligation.Lease
	if lease.Status == models.LeaseStatusFullySigned {
		paymentsComplete, err := s.obligations.ActivationPaymentsComplete(tx, &lease)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("%w: ошибка при сверке активационных платежей", ErrInternal)
		}

		if paymentsComplete {
			// Активируем одним защищенным UPDATE: повторные доставки
			// не смогут активировать договор дважды
			activation := tx.Model(&models.Lease{}).
				Where("id = ? AND status = ?", lease.ID, models.LeaseStatusFullySigned).
				Updates(map[string]interface{}{
					"status":       models.LeaseStatusActive,
					"activated_at": now,
				})
			if activation.Error != nil {
				tx.Rollback()
				return nil, fmt.Errorf("%w: ошибка при активации договора", ErrInternal)
			}
			activated = activation.RowsAffected > 0
		}
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: ошибка при подтверждении транзакции", ErrInternal)
	}

	utils.GetMetrics().RecordPaymentOperation("complete", nil)

	// Уведомляем арендатора о завершенном платеже
	if err := s.email.SendPaymentNotification(obligation.Lease.Tenant.Email, obligation.ID,
		obligation.AmountUSDC, "завершен"); err != nil {
		log.Printf("Ошибка при отправке уведомления: %v", err)
	}

	if activated {
		utils.GetMetrics().RecordLeaseOperation("activate", nil)

		// Повышаем роль арендатора после зафиксированной активации.
		// Сбой повышения не откатывает активацию: договор остается активным,
		// инцидент фиксируется в логах и метриках.
		if err := s.users.PromoteToTenant(lease.TenantID); err != nil {
			utils.LogWarn("договор %d активирован, но роль арендатора %d не повышена: %v",
				lease.ID, lease.TenantID, err)
			utils.GetMetrics().RecordError(err)
		}

		// Уведомляем обе стороны об активации
		if err := s.email.SendLeaseActivatedNotification(lease.Tenant.Email, lease.ID); err != nil {
			log.Printf("Ошибка при отправке уведомления: %v", err)
		}
		if err := s.email.SendLeaseActivatedNotification(lease.Property.Owner.Email, lease.ID); err != nil {
			log.Printf("Ошибка при отправке уведомления: %v", err)
		}
	}

	// Перечитываем обязательство для ответа
	completed, err := s.findObligation(s.db, obligationID)
	if err != nil {
		return nil, err
	}

	return &PaymentResultDTO{
		Obligation:     toObligationDTO(*completed),
		LeaseActivated: activated,
	}, nil
}
