package service

import (
	"ai-assistant-hub/backend/internal/models"
	"ai-assistant-hub/backend/internal/repository"
)

// AccessGuard enforces who may act on sessions, documents and
// assistants. The predicates themselves hold no mutable state.
type AccessGuard struct {
	grants repository.GrantRepository
}

func NewAccessGuard(grants repository.GrantRepository) *AccessGuard {
	return &AccessGuard{grants: grants}
}

// CanConverse reports whether the user may hold conversations with the
// assistant: operators always can, everyone else needs an access grant.
func (g *AccessGuard) CanConverse(user *models.User, assistantID uint) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsAdmin() {
		return true, nil
	}
	return g.grants.Exists(user.ID, assistantID)
}

// OwnsSession reports whether the session belongs to the user
func OwnsSession(userID uint, session *models.Session) bool {
	if session == nil || session.UserID == nil {
		return false
	}
	return *session.UserID == userID
}

// OwnsDocument reports whether the document belongs to the assistant
func OwnsDocument(assistantID uint, document *models.Document) bool {
	if document == nil {
		return false
	}
	return document.AssistantID == assistantID
}
