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

// PaymentController обрабатывает запросы, связанные с платежными обязательствами
type PaymentController struct {
	paymentService    *services.PaymentService
	leaseService      *services.LeaseService
	obligationService *services.ObligationService
	validator         *validator.Validate
}

// NewPaymentController создает новый экземпляр PaymentController
func NewPaymentController(db *database.Database, email *services.EmailService, rail services.PaymentRail) *PaymentController {
	obligations := services.NewObligationService(db.DB)
	users := services.NewUserService(db)
	return &PaymentController{
		paymentService:    services.NewPaymentService(db.DB, email, obligations, users, rail),
		leaseService:      services.NewLeaseService(db.DB, email, obligations),
		obligationService: obligations,
		validator:         validator.New(),
	}
}

// validateRequest валидирует DTO и возвращает ошибки валидации
func (c *PaymentController) validateRequest(dto interface{}) error {
	if err := c.validator.Struct(dto); err != nil {
		validationErrors := err.(validator.ValidationErrors)
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
			case "gt":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше 0")
			case "oneof":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
			}
		}
		return errors.New(strings.Join(errorMessages, "; "))
	}
	return nil
}

// GetLeasePayments обрабатывает запрос на получение обязательств по договору
func (c *PaymentController) GetLeasePayments(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста (установлен middleware)
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем ID договора из URL
	vars := mux.Vars(r)
	leaseID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid lease ID", http.StatusBadRequest)
		return
	}

	// Проверяем, что пользователь является стороной договора
	if _, err := c.leaseService.GetByID(uint(leaseID), userID); err != nil {
		http.Error(w, err.Error(), serviceErrorStatus(err))
		return
	}

	// Получаем список обязательств
	obligations, err := c.obligationService.GetObligationsByLeaseID(uint(leaseID))
	if err != nil {
		http.Error(w, err.Error(), serviceErrorStatus(err))
		return
	}

	// Отправляем ответ
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(obligations)
}

// PayObligation обрабатывает запрос на оплату обязательства
func (c *PaymentController) PayObligation(w http.ResponseWriter, r *http.Request) {
	// Получаем ID пользователя из контекста (установлен middleware)
	userID, ok := r.Context().Value("user_id").(uint)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Получаем ID обязательства из URL
	vars := mux.Vars(r)
	obligationID, err := strconv.ParseUint(vars["id"], 10, 32)
	if err != nil {
		http.Error(w, "Invalid obligation ID", http.StatusBadRequest)
		return
	}

	// Создаем DTO для запроса
	dto := services.PayObligationDTO{
		ObligationID: uint(obligationID),
		PayerID:      userID,
	}

	// Валидируем DTO
	if err := c.validateRequest(dto); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Проводим платеж через платежную систему
	result, err := c.paymentService.Pay(dto)
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
func (c *PaymentController) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/leases/{id}/payments", c.GetLeasePayments).Methods("GET")
	router.HandleFunc("/payments/{id}/pay", c.PayObligation).Methods("POST")
}
