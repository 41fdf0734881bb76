package models

import (
	"time"
)

// AccessGrant lets a user converse with an assistant. Existence of the
// (UserID, AssistantID) pair is the only signal; there is no ordering.
type AccessGrant struct {
	ID          uint      `json:"id" gorm:"primarykey"`
	UserID      uint      `json:"user_id" gorm:"uniqueIndex:idx_grant_user_assistant;not null"`
	AssistantID uint      `json:"assistant_id" gorm:"uniqueIndex:idx_grant_user_assistant;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateGrantRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}
