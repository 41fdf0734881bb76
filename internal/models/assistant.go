package models

import (
	"time"
)

// Assistant is an operator-defined conversational persona backed by an
// optional remote knowledge base. VectorStoreID is the knowledge base
// handle; it stays nil until the first document is registered.
type Assistant struct {
	ID            uint      `json:"id" gorm:"primarykey"`
	Name          string    `json:"name" gorm:"not null"`
	Description   string    `json:"description"`
	Instructions  string    `json:"instructions" gorm:"type:text;not null"`
	Model         string    `json:"model" gorm:"not null"`
	VectorStoreID *string   `json:"vector_store_id,omitempty" gorm:"index"`
	Active        bool      `json:"active" gorm:"default:true"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasKnowledgeBase reports whether a remote index is linked
func (a *Assistant) HasKnowledgeBase() bool {
	return a.VectorStoreID != nil && *a.VectorStoreID != ""
}

type CreateAssistantRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	Instructions string `json:"instructions" binding:"required"`
	Model        string `json:"model"`
}

type UpdateAssistantRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Instructions *string `json:"instructions"`
	Model        *string `json:"model"`
	Active       *bool   `json:"active"`
}
