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

// CreateLeaseDTO представляет данные для создания договора аренды
type CreateLeaseDTO struct {
	PropertyID          uint    `json:"property_id" validate:"required"`
	TenantID            uint    `json:"tenant_id" validate:"required"`
	MonthlyRentUSDC     float64 `json:"monthly_rent_usdc" validate:"required,gt=0"`
	SecurityDepositUSDC float64 `json:"security_deposit_usdc" validate:"gte=0"`
	StartDate           string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate             string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	RentDueDay          int     `json:"rent_due_day" validate:"required,min=1,max=31"`
	LandlordID          uint    `json:"-" validate:"required"`
}

// SignLeaseDTO представляет данные для подписания договора
type SignLeaseDTO struct {
	Signature     string `json:"signature" validate:"required"`
	WalletAddress string `json:"wallet_address" validate:"omitempty,min=32,max=44"`
	LeaseID       uint   `json:"-" validate:"required"`
	UserID        uint   `json:"-" validate:"required"`
}

// PropertyDTO представляет данные объекта недвижимости
type PropertyDTO struct {
	ID      uint    `json:"id"`
	Title   string  `json:"title"`
	Address string  `json:"address"`
	Owner   UserDTO `json:"owner"`
}

// LeaseResponseDTO представляет ответ с данными договора аренды
type LeaseResponseDTO struct {
	ID                  uint            `json:"id"`
	Status              string          `json:"status"`
	MonthlyRentUSDC     float64         `json:"monthly_rent_usdc"`
	SecurityDepositUSDC float64         `json:"security_deposit_usdc"`
	StartDate           time.Time       `json:"start_date"`
	EndDate             time.Time       `json:"end_date"`
	RentDueDay          int             `json:"rent_due_day"`
	DocumentHash        string          `json:"document_hash"`
	TenantSigned        bool            `json:"tenant_signed"`
	LandlordSigned      bool            `json:"landlord_signed"`
	TenantSignedAt      *time.Time      `json:"tenant_signed_at,omitempty"`
	LandlordSignedAt    *time.Time      `json:"landlord_signed_at,omitempty"`
	TenantWallet        string          `json:"tenant_wallet,omitempty"`
	LandlordWallet      string          `json:"landlord_wallet,omitempty"`
	ActivatedAt         *time.Time      `json:"activated_at,omitempty"`
	Tenant              UserDTO         `json:"tenant"`
	Property            PropertyDTO     `json:"property"`
	Obligations         []ObligationDTO `json:"obligations"`
}

// VerifyLeaseResponseDTO представляет результат проверки договора
type VerifyLeaseResponseDTO struct {
	LeaseID        uint   `json:"lease_id"`
	Verified       bool   `json:"verified"`
	TenantSigned   bool   `json:"tenant_signed"`
	LandlordSigned bool   `json:"landlord_signed"`
	Active         bool   `json:"active"`
	DocumentHash   string `json:"document_hash"`
}

// signableStatuses содержит статусы, в которых договор принимает подписи
var signableStatuses = []models.LeaseStatus{
	models.LeaseStatusPendingTenant,
	models.LeaseStatusPendingLandlord,
	models.LeaseStatusFullySigned,
}

// LeaseService предоставляет методы для работы с договорами аренды
type LeaseService struct {
	db          *gorm.DB
	validator   *validator.Validate
	email       *EmailService
	obligations *ObligationService
}

// NewLeaseService создает новый экземпляр LeaseService
func NewLeaseService(db *gorm.DB, email *EmailService, obligations *ObligationService) *LeaseService {
	return &LeaseService{
		db:          db,
		validator:   validator.New(),
		email:       email,
		obligations: obligations,
	}
}

// computeDocumentHash фиксирует условия договора в виде SHA-256 хеша
func computeDocumentHash(propertyID, tenantID uint, rent, deposit float64, start, end time.Time, dueDay int) string {
	terms := fmt.Sprintf("property:%d|tenant:%d|rent:%.2f|deposit:%.2f|start:%s|end:%s|due_day:%d",
		propertyID, tenantID, rent, deposit,
		start.Format("2006-01-02"), end.Format("2006-01-02"), dueDay)
	return utils.SHA256Hex(terms)
}

// toLeaseResponseDTO конвертирует модель Lease в DTO
func (s *LeaseService) toLeaseResponseDTO(lease *models.Lease) *LeaseResponseDTO {
	obligations := make([]ObligationDTO, len(lease.Obligations))
	for i, obligation := range lease.Obligations {
		obligations[i] = toObligationDTO(obligation)
	}

	return &LeaseResponseDTO{
		ID:                  lease.ID,
		Status:              string(lease.Status),
		MonthlyRentUSDC:     lease.MonthlyRentUSDC,
		SecurityDepositUSDC: lease.SecurityDepositUSDC,
		StartDate:           lease.StartDate,
		EndDate:             lease.EndDate,
		RentDueDay:          lease.RentDueDay,
		DocumentHash:        lease.DocumentHash,
		TenantSigned:        lease.TenantSigned(),
		LandlordSigned:      lease.LandlordSigned(),
		TenantSignedAt:      lease.TenantSignedAt,
		LandlordSignedAt:    lease.LandlordSignedAt,
		TenantWallet:        lease.TenantWallet,
		LandlordWallet:      lease.LandlordWallet,
		ActivatedAt:         lease.ActivatedAt,
		Tenant: UserDTO{
			ID:        lease.Tenant.ID,
			FirstName: lease.Tenant.FirstName,
			LastName:  lease.Tenant.LastName,
			Email:     lease.Tenant.Email,
			Role:      string(lease.Tenant.Role),
		},
		Property: PropertyDTO{
			ID:      lease.Property.ID,
			Title:   lease.Property.Title,
			Address: lease.Property.Address,
			Owner: UserDTO{
				ID:        lease.Property.Owner.ID,
				FirstName: lease.Property.Owner.FirstName,
				LastName:  lease.Property.Owner.LastName,
				Email:     lease.Property.Owner.Email,
				Role:      string(lease.Property.Owner.Role),
			},
		},
		Obligations: obligations,
	}
}

// findLease загружает договор со всеми связями
func (s *LeaseService) findLease(id uint) (*models.Lease, error) {
	var lease models.Lease
	if err := s.db.Preload("Tenant").
		Preload("Property.Owner").
		Preload("Obligations", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_obligations.due_date ASC, payment_obligations.id ASC")
		}).
		First(&lease, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: договор аренды", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: ошибка при поиске договора аренды", ErrInternal)
	}
	return &lease, nil
}

// isParty проверяет, является ли пользователь стороной договора
func isParty(lease *models.Lease, userID uint) bool {
	return lease.TenantID == userID || lease.Property.OwnerID == userID
}

// Create создает новый договор аренды
func (s *LeaseService) Create(dto CreateLeaseDTO) (*LeaseResponseDTO, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
			case "gt":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше 0")
			case "gte":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше или равно "+e.Param())
			case "min":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не меньше "+e.Param())
			case "max":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть не больше "+e.Param())
			case "datetime":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть датой в формате 2006-01-02")
			}
		}
		return nil, errors.New(strings.Join(errorMessages, "; "))
	}

	// Разбираем даты договора
	startDate, err := time.Parse("2006-01-02", dto.StartDate)
	if err != nil {
		return nil, errors.New("неверный формат даты начала")
	}
	endDate, err := time.Parse("2006-01-02", dto.EndDate)
	if err != nil {
		return nil, errors.New("неверный формат даты окончания")
	}
	startDate = normalizeToDay(startDate)
	endDate = normalizeToDay(endDate)

	if !endDate.After(startDate) {
		return nil, errors.New("дата окончания должна быть позже даты начала")
	}

	// Начинаем транзакцию
	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("%w: ошибка при начале транзакции", ErrInternal)
	}

	// Проверяем существование объекта недвижимости
	var property models.Property
	if err := tx.Preload("Owner").First(&property, dto.PropertyID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: объект недвижимости", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: ошибка при поиске объекта недвижимости", ErrInternal)
	}

	// Договор может создать только владелец объекта
	if property.OwnerID != dto.LandlordID {
		tx.Rollback()
		return nil, fmt.Errorf("%w: объект принадлежит другому арендодателю", ErrForbidden)
	}

	// Проверяем существование арендатора
	var tenant models.User
	if err := tx.First(&tenant, dto.TenantID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: арендатор", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: ошибка при поиске арендатора", ErrInternal)
	}

	// Арендатором может быть только пользователь с ролью арендатора
	if tenant.Role != models.RoleProspectiveTenant && tenant.Role != models.RoleTenant {
		tx.Rollback()
		return nil, errors.New("пользователь не может выступать арендатором")
	}

	if tenant.ID == property.OwnerID {
		tx.Rollback()
		return nil, errors.New("арендатор и арендодатель должны быть разными пользователями")
	}

	// Создаем договор с зафиксированными условиями
	lease := &models.Lease{
		TenantID:            dto.TenantID,
		PropertyID:          dto.PropertyID,
		MonthlyRentUSDC:     dto.MonthlyRentUSDC,
		SecurityDepositUSDC: dto.SecurityDepositUSDC,
		StartDate:           startDate,
		EndDate:             endDate,
		RentDueDay:          dto.RentDueDay,
		DocumentHash: computeDocumentHash(dto.PropertyID, dto.TenantID,
			dto.MonthlyRentUSDC, dto.SecurityDepositUSDC, startDate, endDate, dto.RentDueDay),
		Status: models.LeaseStatusPendingTenant,
	}

	// Сохраняем договор
	if err := tx.Create(lease).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("%w: ошибка при создании договора аренды", ErrInternal)
	}

	// Подтверждаем транзакцию
	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("%w: ошибка при подтверждении транзакции", ErrInternal)
	}

	// Отправляем уведомление арендатору
	if err := s.email.SendLeaseCreatedNotification(tenant.Email, property.Address, lease.MonthlyRentUSDC); err != nil {
		log.Printf("Ошибка при отправке уведомления: %v", err)
	}

	utils.GetMetrics().RecordLeaseOperation("create", nil)

	// Загружаем договор со связями для ответа
	created, err := s.findLease(lease.ID)
	if err != nil {
		return nil, err
	}

	return s.toLeaseResponseDTO(created), nil
}

// Sign подписывает договор от имени стороны. Повторная подпись той же стороны
// перезаписывает предыдущую. Статус пересчитывается в том же UPDATE, что и
// колонки подписи, поэтому одновременные подписи сторон сливаются без потерь.
func (s *LeaseService) Sign(dto SignLeaseDTO) (*LeaseResponseDTO, error) {
	// Валидируем DTO
	if err := s.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
			case "min":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно содержать минимум "+e.Param()+" символов")
			case "max":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно содержать максимум "+e.Param()+" символов")
			}
		}
		return nil, errors.New(strings.Join(errorMessages, "; "))
	}

	// Загружаем договор
	lease, err := s.findLease(dto.LeaseID)
	if err != nil {
		return nil, err
	}

	// Определяем сторону по подписанту
	var role models.SignerRole
	switch dto.UserID {
	case lease.TenantID:
		role = models.SignerRoleTenant
	case lease.Property.OwnerID:
		role = models.SignerRoleLandlord
	default:
		return nil, fmt.Errorf("%w: подписание доступно только сторонам договора", ErrForbidden)
	}

	// Подписывать можно только договор в фазе подписания
	if !lease.Signable() {
		return nil, fmt.Errorf("%w: договор не находится в фазе подписания", ErrConflict)
	}

	wasFullySigned := lease.Status == models.LeaseStatusFullySigned
	now := time.Now()

	// Записываем подпись и пересчитанный статус одним UPDATE: статус зависит
	// от наличия подписи второй стороны на момент выполнения запроса
	updates := map[string]interface{}{}
	switch role {
	case models.SignerRoleTenant:
		updates["tenant_signature"] = dto.Signature
		updates["tenant_signed_at"] = now
		updates["status"] = gorm.Expr("CASE WHEN landlord_signed_at IS NOT NULL THEN ? ELSE ? END",
			models.LeaseStatusFullySigned, models.LeaseStatusPendingLandlord)
		if dto.WalletAddress != "" {
			updates["tenant_wallet"] = dto.WalletAddress
		}
	case models.SignerRoleLandlord:
		updates["landlord_signature"] = dto.Signature
		updates["landlord_signed_at"] = now
		updates["status"] = gorm.Expr("CASE WHEN tenant_signed_at IS NOT NULL THEN ? ELSE ? END",
			models.LeaseStatusFullySigned, models.LeaseStatusPendingTenant)
		if dto.WalletAddress != "" {
			updates["landlord_wallet"] = dto.WalletAddress
		}
	}

	result := s.db.Model(&models.Lease{}).
		Where("id = ? AND status IN ?", lease.ID, signableStatuses).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: ошибка при сохранении подписи", ErrInternal)
	}

	// Ноль затронутых строк означает, что договор покинул фазу подписания
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: договор не находится в фазе подписания", ErrConflict)
	}

	// Загружаем договор с обновленным статусом
	lease, err = s.findLease(dto.LeaseID)
	if err != nil {
		return nil, err
	}

	if lease.Status == models.LeaseStatusFullySigned {
		// Генерируем активационные обязательства. Сбой генерации не откатывает
		// зафиксированную подпись: обязательства будут досозданы при повторном
		// подписании, а инцидент фиксируется в логах и метриках.
		tx := s.db.Begin()
		if tx.Error != nil {
			utils.LogWarn("не удалось начать транзакцию для обязательств договора %d: %v", lease.ID, tx.Error)
			utils.GetMetrics().RecordError(tx.Error)
		} else {
			if _, err := s.obligations.EnsureActivationObligations(tx, lease); err != nil {
				tx.Rollback()
				utils.LogWarn("не удалось создать активационные обязательства договора %d: %v", lease.ID, err)
				utils.GetMetrics().RecordError(err)
			} else if err := tx.Commit().Error; err != nil {
				utils.LogWarn("не удалось сохранить активационные обязательства договора %d: %v", lease.ID, err)
				utils.GetMetrics().RecordError(err)
			}
		}

		// Уведомляем обе стороны о полном подписании
		if !wasFullySigned {
			if err := s.email.SendLeaseSignedNotification(lease.Tenant.Email, lease.ID); err != nil {
				log.Printf("Ошибка при отправке уведомления: %v", err)
			}
			if err := s.email.SendLeaseSignedNotification(lease.Property.Owner.Email, lease.ID); err != nil {
				log.Printf("Ошибка при отправке уведомления: %v", err)
			}
		}

		// Загружаем договор вместе с созданными обязательствами
		lease, err = s.findLease(dto.LeaseID)
		if err != nil {
			return nil, err
		}
	}

	utils.GetMetrics().RecordLeaseOperation("sign", nil)

	return s.toLeaseResponseDTO(lease), nil
}

// Terminate расторгает договор по требованию одной из сторон
func (s *LeaseService) Terminate(leaseID, userID uint) (*LeaseResponseDTO, error) {
	// Загружаем договор
	lease, err := s.findLease(leaseID)
	if err != nil {
		return nil, err
	}

	// Расторгнуть договор может только сторона договора
	if !isParty(lease, userID) {
		return nil, fmt.Errorf("%w: расторжение доступно только сторонам договора", ErrForbidden)
	}

	// Завершенный договор расторгнуть нельзя
	if lease.Status == models.LeaseStatusTerminated || lease.Status == models.LeaseStatusExpired {
		return nil, fmt.Errorf("%w: договор уже завершен", ErrConflict)
	}

	result := s.db.Model(&models.Lease{}).
		Where("id = ? AND status NOT IN ?", lease.ID,
			[]models.LeaseStatus{models.LeaseStatusTerminated, models.LeaseStatusExpired}).
		Update("status", models.LeaseStatusTerminated)
	if result.Error != nil {
		return nil, fmt.Errorf("%w: ошибка при расторжении договора", ErrInternal)
	}

	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: договор уже завершен", ErrConflict)
	}

	// Уведомляем обе стороны о расторжении
	if err := s.email.SendLeaseTerminatedNotification(lease.Tenant.Email, lease.ID); err != nil {
		log.Printf("Ошибка при отправке уведомления: %v", err)
	}
	if err := s.email.SendLeaseTerminatedNotification(lease.Property.Owner.Email, lease.ID); err != nil {
		log.Printf("Ошибка при отправке уведомления: %v", err)
	}

	utils.GetMetrics().RecordLeaseOperation("terminate", nil)

	// Загружаем договор с обновленным статусом
	lease, err = s.findLease(leaseID)
	if err != nil {
		return nil, err
	}

	return s.toLeaseResponseDTO(lease), nil
}

// Verify проверяет действительность договора: наличие обеих подписей
// и активный статус
func (s *LeaseService) Verify(leaseID uint) (*VerifyLeaseResponseDTO, error) {
	lease, err := s.findLease(leaseID)
	if err != nil {
		return nil, err
	}

	active := lease.Status == models.LeaseStatusActive

	return &VerifyLeaseResponseDTO{
		LeaseID:        lease.ID,
		Verified:       lease.TenantSigned() && lease.LandlordSigned() && active,
		TenantSigned:   lease.TenantSigned(),
		LandlordSigned: lease.LandlordSigned(),
		Active:         active,
		DocumentHash:   lease.DocumentHash,
	}, nil
}

// GetByID возвращает договор по ID для стороны договора
func (s *LeaseService) GetByID(leaseID, userID uint) (*LeaseResponseDTO, error) {
	lease, err := s.findLease(leaseID)
	if err != nil {
		return nil, err
	}

	if !isParty(lease, userID) {
		return nil, fmt.Errorf("%w: договор доступен только его сторонам", ErrForbidden)
	}

	return s.toLeaseResponseDTO(lease), nil
}

// GetLeasesByUserID возвращает все договоры, в которых пользователь
// выступает арендатором или арендодателем
func (s *LeaseService) GetLeasesByUserID(userID uint) ([]LeaseResponseDTO, error) {
	var leases []models.Lease
	if err := s.db.
		Joins("JOIN properties ON properties.id = leases.property_id").
		Where("leases.tenant_id = ? OR properties.owner_id = ?", userID, userID).
		Preload("Tenant").
		Preload("Property.Owner").
		Preload("Obligations", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_obligations.due_date ASC, payment_obligations.id ASC")
		}).
		Order("leases.created_at DESC").
		Find(&leases).Error; err != nil {
		return nil, fmt.Errorf("%w: ошибка при получении договоров", ErrInternal)
	}

	dtos := make([]LeaseResponseDTO, len(leases))
	for i := range leases {
		dtos[i] = *s.toLeaseResponseDTO(&leases[i])
	}

	return dtos, nil
}
