package service

import (
	"time"

	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/jwt"
	"ai-assistant-hub/backend/pkg/logger"

	"gorm.io/gorm"
)

// UserService handles signup, login and profile lookups
type UserService struct {
	db     *gorm.DB
	jwt    *jwt.Service
	logger *logger.Logger
}

func NewUserService(db *gorm.DB, jwtService *jwt.Service, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &UserService{db: db, jwt: jwtService, logger: log}
}

// CreateUser registers a new user. The password is hashed by the model
// hook before it reaches the database.
func (s *UserService) CreateUser(req models.CreateUserRequest) (*models.User, error) {
	var existing models.User
	if err := s.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return nil, errors.NewConflictError(errors.CodeInvalidInput, "email already registered")
	} else if err != gorm.ErrRecordNotFound {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to check email").WithDetails(err.Error())
	}

	role := req.Role
	if role != string(jwt.RoleAdmin) {
		role = string(jwt.RoleUser)
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to create user").WithDetails(err.Error())
	}

	s.logger.Info("user created", "user_id", user.ID, "email", user.Email, "role", user.Role)
	return user, nil
}

// Login verifies credentials and issues a token
func (s *UserService) Login(req models.LoginRequest) (string, *models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil, errors.NewUnauthorizedError(errors.CodeAccessDenied, "invalid email or password")
		}
		return "", nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load user").WithDetails(err.Error())
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return "", nil, errors.NewUnauthorizedError(errors.CodeAccessDenied, "invalid email or password")
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to issue token").WithDetails(err.Error())
	}

	user.LastLogin = time.Now()
	if err := s.db.Model(&user).Update("last_login", user.LastLogin).Error; err != nil {
		s.logger.Warn("failed to record login time", "user_id", user.ID, "error", err.Error())
	}

	return token, &user, nil
}

// GetByID loads a user's profile
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError(errors.CodeUserNotFound, "user not found")
		}
		return nil, errors.NewInternalServerError(errors.CodeStorageFailure, "failed to load user").WithDetails(err.Error())
	}
	return &user, nil
}
