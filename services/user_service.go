package services

import (
	"errors"
	"fmt"

	"rentflow/database"
	"rentflow/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db *database.Database
}

type UserDTO struct {
	ID        uint   `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type CreateUserRequest struct {
	FirstName     string `json:"firstName" validate:"required,min=2,max=50"`
	LastName      string `json:"lastName" validate:"required,min=2,max=50"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=8"`
	Role          string `json:"role" validate:"required,oneof=landlord prospective_tenant"`
	WalletAddress string `json:"walletAddress" validate:"omitempty,min=32,max=44"`
}

type UserResponse struct {
	ID        uint   `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

func NewUserService(db *database.Database) *UserService {
	return &UserService{db: db}
}

// CreateUserInternal создает нового пользователя
func (h *UserService) CreateUserInternal(req CreateUserRequest) (*models.User, error) {
	// Проверяем, существует ли пользователь с таким email
	var existingUser models.User
	if err := h.db.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&existingUser).Error; err == nil {
		return nil, fmt.Errorf("%w: user with this email already exists", ErrConflict)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Хешируем пароль
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// Создаем нового пользователя
	user := &models.User{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Password:      string(hashedPassword),
		Role:          models.UserRole(req.Role),
		WalletAddress: req.WalletAddress,
	}

	if err := h.db.DB.Create(user).Error; err != nil {
		return nil, err
	}

	return user, nil
}

// FindByEmail ищет пользователя по email (игнорируя регистр и пробелы)
func (h *UserService) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := h.db.DB.Where("LOWER(TRIM(email)) = LOWER(TRIM(?))", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: пользователь", ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// FindByID ищет пользователя по ID
func (h *UserService) FindByID(id uint) (*models.User, error) {
	var user models.User
	if err := h.db.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: пользователь", ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// PromoteToTenant переводит потенциального арендатора в статус арендатора.
// Повторный вызов не имеет эффекта.
func (h *UserService) PromoteToTenant(userID uint) error {
	result := h.db.DB.Model(&models.User{}).
		Where("id = ? AND role = ?", userID, models.RoleProspectiveTenant).
		Update("role", models.RoleTenant)
	if result.Error != nil {
		return result.Error
	}

	// Ноль затронутых строк означает, что роль уже повышена либо пользователь не найден
	if result.RowsAffected == 0 {
		var count int64
		if err := h.db.DB.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: пользователь", ErrNotFound)
		}
	}

	return nil
}
