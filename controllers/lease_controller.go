package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"rentflow/database"
	"rentflow/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// LeaseController обрабатывает запросы, связанные с договорами аренды
type LeaseController struct {
	leaseService *services.LeaseService
	validator    *validator.Validate
}

// NewLeaseController создает новый экземпляр LeaseController
func NewLeaseController(db *database.Database, email *services.EmailService) *LeaseController {
	obligations := services.NewObligationService(db.DB)
	return &LeaseController{
		leaseService: services.NewLeaseService(db.DB, email, obligations),
		validator:    validator.New(),
	}
}

// serviceErrorStatus сопоставляет ошибки сервисного слоя с HTTP-статусами
func serviceErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// validateRequest валидирует DTO и возвращает ошибки валидации
func (c *LeaseController) validateRequest(dto interface{}) error {
	if err := c.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
			case "gt":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше 0")
			case "gte":
				errorMessages = append(errorMessages, "поле "+e.Field()+" не может быть отрицательным")
			case "min":
				errorMessages = append(errorMessages, "поле "+e.Field()+" слишком короткое")
			case "max":
				errorMessages = append(errorMessages, "поле "+e.Field()+" слишком длинное")
			case "datetime":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть датой в формате 2006-01-02")
			case "oneof":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
			}
		}
		return errors.New(strings.Join(errorMessages, "; "))
	}
	return nil
}

// leaseIDFromRequest извлекает ID договора из URL
func leaseIDFromRequest(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	leaseID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		return 0, errors.New("Invalid lease ID")
	}
	return uint(leaseID), nil
}

// CreateLease обрабатывает запрос на создание договора аренды
func (c *LeaseController) CreateLease(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста (установлен middleware)
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Создаем DTO для запроса
	var dto services.CreateLeaseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Устанавливаем ID арендодателя
	dto.LandlordID = userID

	// Валидируем DTO
	if err := c.validateRequest(dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Создаем договор
	lease, err := c.leaseService.Create(dto)
	if err != nil {
		http.Error(w, err.Error(), serviceErrorStatus(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(lease)
}

// GetLeases обрабатывает запрос на получение списка договоров пользователя
func (c *LeaseController) GetLeases(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем список договоров, где пользователь является стороной
	leases, err := c.leaseService.GetLeasesByUserID(userID)
	if err != nil {
		http.Error(w, err.Error(), serviceErrorStatus(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(leases)
}

// GetLease обрабатывает запрос на получение информации о договоре
func (c *LeaseController) GetLease(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем ID договора из URL
	leaseID, err := leaseIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Получаем информацию о договоре (доступ только для сторон)
	lease, err := c.leaseService.GetByID(leaseID, userID)
	if err != nil {
		http.Error(w, err.Error(), serviceErrorStatus(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(lease)
}

// SignLease обрабатывает запрос на подписание договора
func (c *LeaseController) SignLease(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем ID договора из URL
	leaseID, err := leaseIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Создаем DTO для запроса
	var dto services.SignLeaseDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Устанавливаем ID договора и подписанта
	dto.LeaseID = leaseID
	dto.UserID = userID

	// Валидируем DTO
	if err := c.validateRequest(dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Подписываем договор
	lease, err := c.leaseService.Sign(dto)
	if err != nil {
		http.Error(w, err.Error(), serviceErrorStatus(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(lease)
}

// TerminateLease обрабатывает запрос на расторжение договора
func (c *LeaseController) TerminateLease(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем ID договора из URL
	leaseID, err := leaseIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Расторгаем договор
	lease, err := c.leaseService.Terminate(leaseID, userID)
	if err != nil {
		http.Error(w, err.Error(), serviceErrorStatus(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(lease)
}

// VerifyLease обрабатывает запрос на проверку подписей договора
func (c *LeaseController) VerifyLease(w http.ResponseWriter, r *http.Request) {
	// Проверку может запросить любой аутентифицированный пользователь
	if _, ok := r.Context().Value("user_id").(uint); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем ID договора из URL
	leaseID, err := leaseIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Проверяем состояние подписей
	result, err := c.leaseService.Verify(leaseID)
	if err != nil {
		http.Error(w, err.Error(), serviceErrorStatus(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// RegisterRoutes регистрирует маршруты контроллера
func (c *LeaseController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/leases", c.CreateLease).Methods("POST")
	router.HandleFunc("/leases", c.GetLeases).Methods("GET")
	router.HandleFunc("/leases/{id}", c.GetLease).Methods("GET")
	router.HandleFunc("/leases/{id}/sign", c.SignLease).Methods("POST")
	router.HandleFunc("/leases/{id}/terminate", c.TerminateLease).Methods("POST")
	router.HandleFunc("/leases/{id}/verify", c.VerifyLease).Methods("GET")
}
