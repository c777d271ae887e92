package services

import (
	"testing"
	"time"

	"rentflow/config"
	"rentflow/database"
	"rentflow/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testTenantWallet   = "7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2"
	testLandlordWallet = "5FHwkrdxntdK24hgQU8qgBjn35Y1zwhz1GZwCkP2UJnM"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.User{}, &models.Property{}, &models.Lease{}, &models.PaymentObligation{})
	require.NoError(t, err)

	return db
}

// newTestEmailService возвращает EmailService с локальным SMTP-адресом.
// Отправка в тестах завершается ошибкой соединения, которую сервисы логируют,
// не прерывая операцию.
func newTestEmailService() *EmailService {
	cfg := &config.Config{}
	cfg.SMTP.Host = "127.0.0.1"
	cfg.SMTP.Port = 2525
	cfg.SMTP.From = "noreply@rentflow.test"
	return NewEmailService(cfg)
}

// testStack собирает сервисы поверх одной тестовой базы
type testStack struct {
	db          *gorm.DB
	users       *UserService
	obligations *ObligationService
	leases      *LeaseService
	payments    *PaymentService
	rail        *MockPaymentRail
}

func newTestStack(t *testing.T) *testStack {
	db := setupTestDB(t)
	email := newTestEmailService()
	obligations := NewObligationService(db)
	users := NewUserService(&database.Database{DB: db})
	rail := NewMockPaymentRail()

	return &testStack{
		db:          db,
		users:       users,
		obligations: obligations,
		leases:      NewLeaseService(db, email, obligations),
		payments:    NewPaymentService(db, email, obligations, users, rail),
		rail:        rail,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	user := &models.User{
		FirstName: "Иван",
		LastName:  "Тестов",
		Email:     email,
		Password:  "hashed-password",
		Role:      role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestProperty(t *testing.T, db *gorm.DB, ownerID uint) *models.Property {
	property := &models.Property{
		OwnerID:         ownerID,
		Title:           "Квартира на Тверской",
		Address:         "Москва, ул. Тверская, д. 1",
		MonthlyRentUSDC: 1500,
	}
	require.NoError(t, db.Create(property).Error)
	return property
}

// createSignedLease проводит договор через создание и подписание обеими
// сторонами: после возврата договор полностью подписан, кошельки записаны,
// активационные обязательства созданы
func createSignedLease(t *testing.T, s *testStack, landlord, tenant *models.User, deposit float64) *LeaseResponseDTO {
	property := createTestProperty(t, s.db, landlord.ID)

	created, err := s.leases.Create(CreateLeaseDTO{
		PropertyID:          property.ID,
		TenantID:            tenant.ID,
		MonthlyRentUSDC:     1500,
		SecurityDepositUSDC: deposit,
		StartDate:           "2026-09-01",
		EndDate:             "2027-08-31",
		RentDueDay:          1,
		LandlordID:          landlord.ID,
	})
	require.NoError(t, err)

	_, err = s.leases.Sign(SignLeaseDTO{
		Signature:     "tenant-signature",
		WalletAddress: testTenantWallet,
		LeaseID:       created.ID,
		UserID:        tenant.ID,
	})
	require.NoError(t, err)

	signed, err := s.leases.Sign(SignLeaseDTO{
		Signature:     "landlord-signature",
		WalletAddress: testLandlordWallet,
		LeaseID:       created.ID,
		UserID:        landlord.ID,
	})
	require.NoError(t, err)
	require.Equal(t, string(models.LeaseStatusFullySigned), signed.Status)

	return signed
}

// createActiveLease создает уже активированный договор напрямую в базе,
// минуя фазы подписания и оплаты
func createActiveLease(t *testing.T, db *gorm.DB, tenantID, propertyID uint, start, end time.Time, dueDay int) *models.Lease {
	now := time.Now()
	signature := "signed"
	lease := &models.Lease{
		TenantID:            tenantID,
		PropertyID:          propertyID,
		MonthlyRentUSDC:     1500,
		SecurityDepositUSDC: 1500,
		StartDate:           start,
		EndDate:             end,
		RentDueDay:          dueDay,
		TenantSignature:     &signature,
		TenantSignedAt:      &now,
		LandlordSignature:   &signature,
		LandlordSignedAt:    &now,
		TenantWallet:        testTenantWallet,
		LandlordWallet:      testLandlordWallet,
		Status:              models.LeaseStatusActive,
		ActivatedAt:         &now,
	}
	require.NoError(t, db.Create(lease).Error)
	return lease
}

// obligationByType находит в ответе обязательство указанного вида
func obligationByType(t *testing.T, obligations []ObligationDTO, obligationType models.ObligationType) ObligationDTO {
	for _, obligation := range obligations {
		if obligation.Type == string(obligationType) {
			return obligation
		}
	}
	t.Fatalf("обязательство вида %s не найдено", obligationType)
	return ObligationDTO{}
}
