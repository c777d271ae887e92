package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port    int
		OpsPort int
	}
	DB struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
	}
	JWT struct {
		SecretKey string
		ExpiresIn int // в часах
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Rail struct {
		Mode     string // "mock" или "xml"
		Endpoint string // URL платежной системы для режима "xml"
		Secret   string // Ключ HMAC для вебхуков и исходящих запросов
	}
	Maintenance struct {
		Token            string // Токен для запуска обслуживания извне
		RentWindowMonths int    // Горизонт генерации арендных обязательств
	}
}

// NewConfig создает новый экземпляр конфигурации
func NewConfig() (*Config, error) {
	// Опционально загружаем .env для локального запуска
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	// Настройки сервера
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("OPS_PORT", 8081)

	// Настройки базы данных
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "rentflow_db")

	// Настройки JWT
	v.SetDefault("JWT_SECRET_KEY", "your-secret-key-here")
	v.SetDefault("JWT_EXPIRES_IN", 24)

	// Настройки SMTP
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "your-email@gmail.com")
	v.SetDefault("SMTP_PASSWORD", "your-app-password")
	v.SetDefault("SMTP_FROM", "your-email@gmail.com")

	// Настройки платежной системы
	v.SetDefault("RAIL_MODE", "mock")
	v.SetDefault("RAIL_ENDPOINT", "http://localhost:9090/rail")
	v.SetDefault("RAIL_SECRET", "your-rail-secret-here")

	// Настройки обслуживания
	v.SetDefault("MAINTENANCE_TOKEN", "your-maintenance-token-here")
	v.SetDefault("RENT_WINDOW_MONTHS", 3)

	cfg := &Config{}
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.OpsPort = v.GetInt("OPS_PORT")
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetInt("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.DBName = v.GetString("DB_NAME")
	cfg.JWT.SecretKey = v.GetString("JWT_SECRET_KEY")
	cfg.JWT.ExpiresIn = v.GetInt("JWT_EXPIRES_IN")
	cfg.SMTP.Host = v.GetString("SMTP_HOST")
	cfg.SMTP.Port = v.GetInt("SMTP_PORT")
	cfg.SMTP.Username = v.GetString("SMTP_USERNAME")
	cfg.SMTP.Password = v.GetString("SMTP_PASSWORD")
	cfg.SMTP.From = v.GetString("SMTP_FROM")
	cfg.Rail.Mode = v.GetString("RAIL_MODE")
	cfg.Rail.Endpoint = v.GetString("RAIL_ENDPOINT")
	cfg.Rail.Secret = v.GetString("RAIL_SECRET")
	cfg.Maintenance.Token = v.GetString("MAINTENANCE_TOKEN")
	cfg.Maintenance.RentWindowMonths = v.GetInt("RENT_WINDOW_MONTHS")

	// Проверяем значения
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("неверный формат порта сервера: %d", cfg.Server.Port)
	}
	if cfg.Server.OpsPort <= 0 || cfg.Server.OpsPort > 65535 {
		return nil, fmt.Errorf("неверный формат служебного порта: %d", cfg.Server.OpsPort)
	}
	if cfg.DB.Port <= 0 || cfg.DB.Port > 65535 {
		return nil, fmt.Errorf("неверный формат порта базы данных: %d", cfg.DB.Port)
	}
	if cfg.JWT.ExpiresIn <= 0 {
		return nil, fmt.Errorf("неверный формат времени жизни JWT: %d", cfg.JWT.ExpiresIn)
	}
	if cfg.Rail.Mode != "mock" && cfg.Rail.Mode != "xml" {
		return nil, fmt.Errorf("неверный режим платежной системы: %s", cfg.Rail.Mode)
	}
	if cfg.Maintenance.RentWindowMonths < 1 || cfg.Maintenance.RentWindowMonths > 12 {
		return nil, fmt.Errorf("неверный горизонт генерации аренды: %d", cfg.Maintenance.RentWindowMonths)
	}

	return cfg, nil
}
