package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"rentflow/config"
	"rentflow/controllers"
	"rentflow/database"
	"rentflow/middleware"
	"rentflow/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

// initOpsServer запускает служебный gin-сервер на отдельном порту:
// здоровье, метрики, обслуживание и вебхук платежной системы
func initOpsServer(cfg *config.Config, db *database.Database, emailService *services.EmailService, rail services.PaymentRail) {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(middleware.Logger())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RateLimit())
	engine.Use(middleware.CORSMiddleware())

	// Инициализируем контроллер служебных запросов
	maintenanceController := controllers.NewMaintenanceController(db, emailService, rail, cfg.Maintenance.RentWindowMonths)
	maintenanceController.RegisterRoutes(engine, cfg.Maintenance.Token, cfg.Rail.Secret)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.OpsPort)
		log.Printf("Служебный сервер запущен на порту %s", addr)
		if err := engine.Run(addr); err != nil {
			log.Fatalf("Ошибка запуска служебного сервера: %v", err)
		}
	}()
}

// serveCmd запускает API-сервер и служебный сервер
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запуск API-сервера и служебного сервера",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Инициализируем конфигурацию
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
			}

			// Инициализируем подключение к базе данных
			db, err := database.NewDatabase(cfg)
			if err != nil {
				return fmt.Errorf("ошибка подключения к базе данных: %w", err)
			}

			// Инициализируем сервис email и платежную систему
			emailService := services.NewEmailService(cfg)
			rail := services.NewPaymentRail(cfg)

			// Запускаем служебный сервер
			initOpsServer(cfg, db, emailService, rail)

			// Создаем роутер
			router := mux.NewRouter()

			// Инициализируем контроллеры
			authController := controllers.NewAuthController(db)
			leaseController := controllers.NewLeaseController(db, emailService)
			paymentController := controllers.NewPaymentController(db, emailService, rail)

			// Публичные маршруты для аутентификации
			router.HandleFunc("/api/auth/signUp", authController.SignUp).Methods("POST")
			router.HandleFunc("/api/auth/signIn", authController.SignIn).Methods("POST")

			// Защищенные маршруты
			protected := router.PathPrefix("/api").Subrouter()
			protected.Use(middleware.AuthMiddleware([]byte(authController.GetJWTKey())))
			protected.Use(middleware.LoggingMiddleware)

			// Маршруты для работы с договорами аренды и платежами
			leaseController.RegisterRoutes(protected)
			paymentController.RegisterRoutes(protected)

			// Запускаем сервер
			port := fmt.Sprintf(":%d", cfg.Server.Port)
			log.Printf("Сервер запущен на порту %s", port)
			return http.ListenAndServe(port, router)
		},
	}
}

// maintenanceCmd выполняет один проход ежедневного обслуживания и завершается.
// Предназначен для запуска внешним планировщиком (cron, systemd timer)
func maintenanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintenance",
		Short: "Однократный проход ежедневного обслуживания",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Инициализируем конфигурацию
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
			}

			// Инициализируем подключение к базе данных
			db, err := database.NewDatabase(cfg)
			if err != nil {
				return fmt.Errorf("ошибка подключения к базе данных: %w", err)
			}

			// Выполняем проход обслуживания
			obligations := services.NewObligationService(db.DB)
			maintenanceService := services.NewMaintenanceService(db.DB, obligations, cfg.Maintenance.RentWindowMonths)
			report, err := maintenanceService.RunDaily(time.Now())
			if report != nil {
				fmt.Printf("создано арендных обязательств: %d (ошибок: %d)\n", report.RentCreated, report.RentErrors)
				fmt.Printf("помечено просроченными: %d\n", report.MarkedLate)
				fmt.Printf("договоров истекло: %d\n", report.LeasesExpired)
			}
			return err
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "rentflow",
		Short: "Сервис жизненного цикла договоров аренды и платежных обязательств",
	}

	rootCmd.AddCommand(
		serveCmd(),
		maintenanceCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
