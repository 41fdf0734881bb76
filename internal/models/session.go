package models

import (
	"time"
)

// Session is one user's conversation against an assistant. LastResponseID
// is the continuation token returned by the answering service after each
// turn; it always reflects the most recent turn. AssistantID is a weak
// reference: assistant deletion nulls it so history is preserved.
type Session struct {
	ID             uint      `json:"id" gorm:"primarykey"`
	UserID         *uint     `json:"user_id" gorm:"index"`
	AssistantID    *uint     `json:"assistant_id" gorm:"index"`
	LastResponseID string    `json:"-"`
	Title          string    `json:"title"`
	TestMode       bool      `json:"test_mode" gorm:"default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateSessionRequest struct {
	AssistantID uint   `json:"assistant_id" binding:"required"`
	Title       string `json:"title"`
	TestMode    bool   `json:"test_mode"`
}
