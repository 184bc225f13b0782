package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type ConversationMessage struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	SessionId      string
	Role           string
	Content        string
	Metadata       map[string]any
	CreatedAt      time.Time
}
