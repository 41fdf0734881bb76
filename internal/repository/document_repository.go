package repository

import (
	"errors"

	"ai-assistant-hub/backend/internal/models"

	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(document *models.Document) error
	GetByID(id uint) (*models.Document, error)
	ListByAssistantID(assistantID uint) ([]models.Document, error)
	Delete(id uint) error
}

type GormDocumentRepository struct {
	db *gorm.DB
}

func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

func (r *GormDocumentRepository) Create(document *models.Document) error {
	return r.db.Create(document).Error
}

func (r *GormDocumentRepository) GetByID(id uint) (*models.Document, error) {
	var document models.Document
	err := r.db.First(&document, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &document, nil
}

func (r *GormDocumentRepository) ListByAssistantID(assistantID uint) ([]models.Document, error) {
	var documents []models.Document
	err := r.db.Where("assistant_id = ?", assistantID).
		Order("uploaded_at ASC").
		Find(&documents).Error
	return documents, err
}

func (r *GormDocumentRepository) Delete(id uint) error {
	return r.db.Delete(&models.Document{}, id).Error
}
