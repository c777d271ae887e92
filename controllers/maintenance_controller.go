package controllers

import (
	"net/http"
	"strconv"
	"time"

	"rentflow/database"
	"rentflow/middleware"
	"rentflow/services"
	"rentflow/utils"

	"github.com/gin-gonic/gin"
)

// MaintenanceController обрабатывает служебные запросы ops-сервера:
// здоровье, метрики, ежедневное обслуживание и вебхук о расчете
type MaintenanceController struct {
	maintenanceService *services.MaintenanceService
	paymentService     *services.PaymentService
}

// CompletePaymentRequest представляет тело вебхука о завершении расчета
type CompletePaymentRequest struct {
	SettlementRef string `json:"settlement_ref" binding:"required"`
}

// NewMaintenanceController создает новый экземпляр MaintenanceController
func NewMaintenanceController(db *database.Database, email *services.EmailService, rail services.PaymentRail, windowMonths int) *MaintenanceController {
	obligations := services.NewObligationService(db.DB)
	users := services.NewUserService(db)
	return &MaintenanceController{
		maintenanceService: services.NewMaintenanceService(db.DB, obligations, windowMonths),
		paymentService:     services.NewPaymentService(db.DB, email, obligations, users, rail),
	}
}

// Health возвращает состояние сервиса
func (m *MaintenanceController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Metrics возвращает снимок метрик сервиса
func (m *MaintenanceController) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, utils.GetMetrics().GetMetricsSnapshot())
}

// RunMaintenance запускает ежедневное обслуживание: генерацию аренды,
// пометку просроченных обязательств и истечение договоров
func (m *MaintenanceController) RunMaintenance(c *gin.Context) {
	report, err := m.maintenanceService.RunDaily(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  err.Error(),
			"report": report,
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// CompletePayment обрабатывает вебхук платежной системы о завершении расчета
func (m *MaintenanceController) CompletePayment(c *gin.Context) {
	// Получаем ID обязательства из URL
	obligationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid obligation ID"})
		return
	}

	// Разбираем тело вебхука
	var req CompletePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Завершаем обязательство; повторная доставка вебхука безопасна
	result, err := m.paymentService.Complete(uint(obligationID), req.SettlementRef)
	if err != nil {
		c.JSON(serviceErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RegisterRoutes регистрирует маршруты ops-сервера
func (m *MaintenanceController) RegisterRoutes(router *gin.Engine, maintenanceToken, webhookSecret string) {
	ops := router.Group("/ops")
	ops.GET("/health", m.Health)
	ops.GET("/metrics", m.Metrics)
	ops.POST("/maintenance/run", middleware.MaintenanceAuth(maintenanceToken), m.RunMaintenance)
	ops.POST("/payments/:id/complete", middleware.WebhookAuth(webhookSecret), m.CompletePayment)
}
