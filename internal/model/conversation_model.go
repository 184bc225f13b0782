package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Conversation struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Title     string         `gorm:"type:text;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Conversation) TableName() string {
	return "assistant_conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	return nil
}

type ConversationMessage struct {
	Id             uuid.UUID                          `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID                          `gorm:"type:uuid;not null;index"`
	SessionId      string                             `gorm:"type:varchar(64);index"`
	Role           string                             `gorm:"type:varchar(20);not null"`
	Content        string                             `gorm:"type:text;not null"`
	Metadata       datatypes.JSONType[map[string]any] `gorm:"column:metadata"`
	CreatedAt      time.Time                          `gorm:"autoCreateTime"`
	DeletedAt      gorm.DeletedAt                     `gorm:"index"`
}

func (ConversationMessage) TableName() string {
	return "assistant_conversation_messages"
}

func (m *ConversationMessage) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	return nil
}

// AutoMigrateModels lists the tables the assistant owns.
func AutoMigrateModels() []interface{} {
	return []interface{}{&Conversation{}, &ConversationMessage{}}
}
