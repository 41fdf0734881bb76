package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Citation references a source file and the quoted span backing an answer
type Citation struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename,omitempty"`
	Quote    string `json:"quote"`
}

// CitationList is stored as a JSON column. An empty list is persisted as
// NULL, not as an empty array, so "no citations" is distinguishable in
// the row itself.
type CitationList []Citation

// Value implements driver.Valuer
func (c CitationList) Value() (driver.Value, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *CitationList) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("unsupported citation column type")
	}
}

// Message is one turn entry in a session. Append-only except for bulk
// clear; ordering is by creation timestamp.
type Message struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	ExternalID string       `json:"external_id" gorm:"index"`
	SessionID  uint         `json:"session_id" gorm:"index;not null"`
	Role       string       `json:"role"`
	Content    string       `json:"content" gorm:"type:text"`
	Citations  CitationList `json:"citations,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time    `json:"created_at"`
}

type SendTurnRequest struct {
	Content string `json:"content" binding:"required"`
}
