package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rentflow/config"
	"rentflow/database"
	"rentflow/middleware"
	"rentflow/models"
	"rentflow/services"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testUserPassword   = "Secret123!"
	testTenantWallet   = "7Np41oeYqPefeNQEHSv1UDhYrehxin3NStELsSKCT4K2"
	testLandlordWallet = "5FHwkrdxntdK24hgQU8qgBjn35Y1zwhz1GZwCkP2UJnM"
)

func setupTestDB(t *testing.T) *database.Database {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.User{}, &models.Property{}, &models.Lease{}, &models.PaymentObligation{})
	require.NoError(t, err)

	return &database.Database{DB: db}
}

// newTestEmailService возвращает EmailService с локальным SMTP-адресом:
// отправка в тестах падает с ошибкой соединения, которую сервисы логируют
func newTestEmailService() *services.EmailService {
	cfg := &config.Config{}
	cfg.SMTP.Host = "127.0.0.1"
	cfg.SMTP.Port = 2525
	cfg.SMTP.From = "noreply@rentflow.test"
	return services.NewEmailService(cfg)
}

// apiStack поднимает API-роутер с контроллерами и middleware
// поверх тестовой базы, так же, как это делает serve
type apiStack struct {
	db     *database.Database
	auth   *AuthController
	rail   *services.MockPaymentRail
	router *mux.Router
}

func newAPIStack(t *testing.T) *apiStack {
	db := setupTestDB(t)
	email := newTestEmailService()
	rail := services.NewMockPaymentRail()

	authController := NewAuthController(db)
	leaseController := NewLeaseController(db, email)
	paymentController := NewPaymentController(db, email, rail)

	router := mux.NewRouter()
	router.HandleFunc("/api/auth/signUp", authController.SignUp).Methods("POST")
	router.HandleFunc("/api/auth/signIn", authController.SignIn).Methods("POST")

	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(middleware.AuthMiddleware([]byte(authController.GetJWTKey())))
	leaseController.RegisterRoutes(protected)
	paymentController.RegisterRoutes(protected)

	return &apiStack{db: db, auth: authController, rail: rail, router: router}
}

// tokenFor выпускает JWT для пользователя тем же ключом, что и сервер
func (s *apiStack) tokenFor(t *testing.T, user *models.User) string {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.auth.GetJWTKey()))
	require.NoError(t, err)
	return token
}

// doJSON выполняет запрос к роутеру с JSON-телом и токеном авторизации
func (s *apiStack) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst))
}

func createAPIUser(t *testing.T, db *database.Database, email string, role models.UserRole) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(testUserPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		FirstName: "Ivan",
		LastName:  "Testov",
		Email:     email,
		Password:  string(hash),
		Role:      role,
	}
	require.NoError(t, db.DB.Create(user).Error)
	return user
}

func createAPIProperty(t *testing.T, db *database.Database, ownerID uint) *models.Property {
	property := &models.Property{
		OwnerID:         ownerID,
		Title:           "Квартира на Тверской",
		Address:         "Москва, ул. Тверская, д. 1",
		MonthlyRentUSDC: 1500,
	}
	require.NoError(t, db.DB.Create(property).Error)
	return property
}

// signedLeaseOverHTTP проводит договор через HTTP: создание арендодателем
// и подписание обеими сторонами с указанием кошельков
func (s *apiStack) signedLeaseOverHTTP(t *testing.T, landlord, tenant *models.User) *services.LeaseResponseDTO {
	property := createAPIProperty(t, s.db, landlord.ID)

	rr := s.doJSON(t, http.MethodPost, "/api/leases", s.tokenFor(t, landlord), map[string]interface{}{
		"property_id":           property.ID,
		"tenant_id":             tenant.ID,
		"monthly_rent_usdc":     1500,
		"security_deposit_usdc": 1500,
		"start_date":            "2026-09-01",
		"end_date":              "2027-08-31",
		"rent_due_day":          1,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var lease services.LeaseResponseDTO
	decodeJSON(t, rr, &lease)

	rr = s.doJSON(t, http.MethodPost, fmt.Sprintf("/api/leases/%d/sign", lease.ID), s.tokenFor(t, tenant), map[string]interface{}{
		"signature":      "tenant-signature",
		"wallet_address": testTenantWallet,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.doJSON(t, http.MethodPost, fmt.Sprintf("/api/leases/%d/sign", lease.ID), s.tokenFor(t, landlord), map[string]interface{}{
		"signature":      "landlord-signature",
		"wallet_address": testLandlordWallet,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	decodeJSON(t, rr, &lease)
	require.Equal(t, string(models.LeaseStatusFullySigned), lease.Status)
	return &lease
}
