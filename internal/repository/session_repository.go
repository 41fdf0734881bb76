package repository

import (
	"errors"

	"ai-assistant-hub/backend/internal/models"

	"gorm.io/gorm"
)

// SessionFilter narrows session listings
type SessionFilter struct {
	AssistantID *uint
	TestMode    *bool
}

type SessionRepository interface {
	Create(session *models.Session) error
	GetByID(id uint) (*models.Session, error)
	ListByUserID(userID uint, filter SessionFilter) ([]models.Session, error)
	UpdateLastResponseID(id uint, responseID string) error
	UpdateTitle(id uint, title string) error
	// Delete removes the session and all its messages
	Delete(id uint) error
}

type GormSessionRepository struct {
	db *gorm.DB
}

func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

func (r *GormSessionRepository) Create(session *models.Session) error {
	return r.db.Create(session).Error
}

func (r *GormSessionRepository) GetByID(id uint) (*models.Session, error) {
	var session models.Session
	err := r.db.First(&session, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *GormSessionRepository) ListByUserID(userID uint, filter SessionFilter) ([]models.Session, error) {
	query := r.db.Where("user_id = ?", userID)
	if filter.AssistantID != nil {
		query = query.Where("assistant_id = ?", *filter.AssistantID)
	}
	if filter.TestMode != nil {
		query = query.Where("test_mode = ?", *filter.TestMode)
	}
	var sessions []models.Session
	err := query.Order("created_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *GormSessionRepository) UpdateLastResponseID(id uint, responseID string) error {
	return r.db.Model(&models.Session{}).
		Where("id = ?", id).
		Update("last_response_id", responseID).Error
}

func (r *GormSessionRepository) UpdateTitle(id uint, title string) error {
	return r.db.Model(&models.Session{}).
		Where("id = ?", id).
		Update("title", title).Error
}

func (r *GormSessionRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Session{}, id).Error
	})
}
