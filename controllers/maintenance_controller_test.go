package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rentflow/database"
	"rentflow/models"
	"rentflow/services"
	"rentflow/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMaintenanceToken = "test-maintenance-token"
	testWebhookSecret    = "test-webhook-secret"
)

func newOpsStack(t *testing.T) (*gin.Engine, *database.Database, *services.MockPaymentRail) {
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	rail := services.NewMockPaymentRail()
	controller := NewMaintenanceController(db, newTestEmailService(), rail, 3)

	engine := gin.New()
	controller.RegisterRoutes(engine, testMaintenanceToken, testWebhookSecret)
	return engine, db, rail
}

// signedWebhook отправляет вебхук с корректной HMAC-подписью тела
func signedWebhook(t *testing.T, engine *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", utils.GenerateHMAC(string(body), []byte(testWebhookSecret)))

	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr
}

// createWebhookFixture создает полностью подписанный договор с парой
// активационных обязательств напрямую в базе
func createWebhookFixture(t *testing.T, db *database.Database) (*models.Lease, *models.PaymentObligation, *models.PaymentObligation) {
	landlord := createAPIUser(t, db, "landlord@example.com", models.RoleLandlord)
	tenant := createAPIUser(t, db, "tenant@example.com", models.RoleProspectiveTenant)
	property := createAPIProperty(t, db, landlord.ID)

	now := time.Now()
	signature := "signed"
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	lease := &models.Lease{
		TenantID:            tenant.ID,
		PropertyID:          property.ID,
		MonthlyRentUSDC:     1500,
		SecurityDepositUSDC: 1500,
		StartDate:           start,
		EndDate:             time.Date(2027, 8, 31, 0, 0, 0, 0, time.UTC),
		RentDueDay:          1,
		TenantSignature:     &signature,
		TenantSignedAt:      &now,
		LandlordSignature:   &signature,
		LandlordSignedAt:    &now,
		TenantWallet:        testTenantWallet,
		LandlordWallet:      testLandlordWallet,
		Status:              models.LeaseStatusFullySigned,
	}
	require.NoError(t, db.DB.Create(lease).Error)

	deposit := &models.PaymentObligation{
		LeaseID:    lease.ID,
		TenantID:   tenant.ID,
		Type:       models.ObligationTypeSecurityDeposit,
		AmountUSDC: 1500,
		DueDate:    start,
		Status:     models.ObligationStatusPending,
	}
	require.NoError(t, db.DB.Create(deposit).Error)

	rent := &models.PaymentObligation{
		LeaseID:    lease.ID,
		TenantID:   tenant.ID,
		Type:       models.ObligationTypeRent,
		AmountUSDC: 1500,
		DueDate:    start,
		Status:     models.ObligationStatusPending,
	}
	require.NoError(t, db.DB.Create(rent).Error)

	return lease, deposit, rent
}

func TestOpsHealth(t *testing.T) {
	engine, _, _ := newOpsStack(t)

	req := httptest.NewRequest(http.MethodGet, "/ops/health", nil)
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestOpsMetrics(t *testing.T) {
	engine, _, _ := newOpsStack(t)

	req := httptest.NewRequest(http.MethodGet, "/ops/metrics", nil)
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body, "total_requests")
	assert.Contains(t, body, "payments_completed")
}

func TestRunMaintenanceRequiresToken(t *testing.T) {
	engine, _, _ := newOpsStack(t)

	// Без токена
	req := httptest.NewRequest(http.MethodPost, "/ops/maintenance/run", nil)
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// С неверным токеном
	req = httptest.NewRequest(http.MethodPost, "/ops/maintenance/run", nil)
	req.Header.Set("X-Maintenance-Token", "wrong-token")
	rr = httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// С верным токеном обслуживание выполняется
	req = httptest.NewRequest(http.MethodPost, "/ops/maintenance/run", nil)
	req.Header.Set("X-Maintenance-Token", testMaintenanceToken)
	rr = httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report services.MaintenanceReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 0, report.RentCreated)
}

// Вебхук завершает обязательства и активирует договор после второго расчета
func TestCompletePaymentWebhook(t *testing.T) {
	engine, db, _ := newOpsStack(t)
	lease, deposit, rent := createWebhookFixture(t, db)

	rr := signedWebhook(t, engine, fmt.Sprintf("/ops/payments/%d/complete", deposit.ID),
		map[string]interface{}{"settlement_ref": "RAIL-77"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result services.PaymentResultDTO
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, string(models.ObligationStatusCompleted), result.Obligation.Status)
	assert.Equal(t, "RAIL-77", result.Obligation.SettlementRef)
	assert.False(t, result.LeaseActivated)

	rr = signedWebhook(t, engine, fmt.Sprintf("/ops/payments/%d/complete", rent.ID),
		map[string]interface{}{"settlement_ref": "RAIL-78"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.True(t, result.LeaseActivated)

	var stored models.Lease
	require.NoError(t, db.DB.First(&stored, lease.ID).Error)
	assert.Equal(t, models.LeaseStatusActive, stored.Status)

	// Повторная доставка того же вебхука безопасна
	rr = signedWebhook(t, engine, fmt.Sprintf("/ops/payments/%d/complete", deposit.ID),
		map[string]interface{}{"settlement_ref": "RAIL-99"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.False(t, result.LeaseActivated)
	assert.Equal(t, "RAIL-77", result.Obligation.SettlementRef)
}

func TestCompletePaymentWebhookRejectsBadSignature(t *testing.T) {
	engine, db, _ := newOpsStack(t)
	_, deposit, _ := createWebhookFixture(t, db)

	body := []byte(`{"settlement_ref":"RAIL-77"}`)
	path := fmt.Sprintf("/ops/payments/%d/complete", deposit.ID)

	// Неверная подпись
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("X-Webhook-Signature", "bogus")
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Без подписи
	req = httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rr = httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	var count int64
	require.NoError(t, db.DB.Model(&models.PaymentObligation{}).
		Where("status = ?", models.ObligationStatusCompleted).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCompletePaymentWebhookValidation(t *testing.T) {
	engine, db, _ := newOpsStack(t)
	_, deposit, _ := createWebhookFixture(t, db)

	// Пустое тело без settlement_ref
	rr := signedWebhook(t, engine, fmt.Sprintf("/ops/payments/%d/complete", deposit.ID),
		map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Несуществующее обязательство
	rr = signedWebhook(t, engine, "/ops/payments/999/complete",
		map[string]interface{}{"settlement_ref": "RAIL-1"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
