package repository

import (
	"ai-assistant-hub/backend/internal/models"

	"gorm.io/gorm"
)

type GrantRepository interface {
	Create(grant *models.AccessGrant) error
	Exists(userID, assistantID uint) (bool, error)
	ListByAssistantID(assistantID uint) ([]models.AccessGrant, error)
	DeleteByUserAndAssistant(userID, assistantID uint) error
}

type GormGrantRepository struct {
	db *gorm.DB
}

func NewGormGrantRepository(db *gorm.DB) *GormGrantRepository {
	return &GormGrantRepository{db: db}
}

func (r *GormGrantRepository) Create(grant *models.AccessGrant) error {
	return r.db.Create(grant).Error
}

func (r *GormGrantRepository) Exists(userID, assistantID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.AccessGrant{}).
		Where("user_id = ? AND assistant_id = ?", userID, assistantID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormGrantRepository) ListByAssistantID(assistantID uint) ([]models.AccessGrant, error) {
	var grants []models.AccessGrant
	err := r.db.Where("assistant_id = ?", assistantID).Find(&grants).Error
	return grants, err
}

func (r *GormGrantRepository) DeleteByUserAndAssistant(userID, assistantID uint) error {
	return r.db.Where("user_id = ? AND assistant_id = ?", userID, assistantID).
		Delete(&models.AccessGrant{}).Error
}
