package repository

import (
	"errors"

	"ai-assistant-hub/backend/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned by all repositories when no row matches
var ErrNotFound = errors.New("record not found")

type AssistantRepository interface {
	Create(assistant *models.Assistant) error
	GetByID(id uint) (*models.Assistant, error)
	List() ([]models.Assistant, error)
	Update(assistant *models.Assistant) error
	SetVectorStoreID(id uint, vectorStoreID string) error
	// Delete removes the assistant, its documents and its grants in one
	// transaction, and nulls the assistant reference on sessions so
	// conversation history survives.
	Delete(id uint) error
}

type GormAssistantRepository struct {
	db *gorm.DB
}

func NewGormAssistantRepository(db *gorm.DB) *GormAssistantRepository {
	return &GormAssistantRepository{db: db}
}

func (r *GormAssistantRepository) Create(assistant *models.Assistant) error {
	return r.db.Create(assistant).Error
}

func (r *GormAssistantRepository) GetByID(id uint) (*models.Assistant, error) {
	var assistant models.Assistant
	err := r.db.First(&assistant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &assistant, nil
}

func (r *GormAssistantRepository) List() ([]models.Assistant, error) {
	var assistants []models.Assistant
	err := r.db.Order("id ASC").Find(&assistants).Error
	return assistants, err
}

func (r *GormAssistantRepository) Update(assistant *models.Assistant) error {
	return r.db.Save(assistant).Error
}

func (r *GormAssistantRepository) SetVectorStoreID(id uint, vectorStoreID string) error {
	return r.db.Model(&models.Assistant{}).
		Where("id = ?", id).
		Update("vector_store_id", vectorStoreID).Error
}

func (r *GormAssistantRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assistant_id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assistant_id = ?", id).Delete(&models.AccessGrant{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Session{}).
			Where("assistant_id = ?", id).
			Update("assistant_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Assistant{}, id).Error
	})
}
