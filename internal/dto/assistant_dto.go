package dto

import (
	"time"

	"ai-assistant-be/pkg/continuity"
	"ai-assistant-be/pkg/generation"
)

type SubmitMessageRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

type SubmitMessageResponse struct {
	ContextID string           `json:"context_id"`
	SessionID string           `json:"session_id"`
	State     generation.State `json:"state"`
	StartedAt time.Time        `json:"started_at"`
}

type SessionSnapshot struct {
	ID          string                  `json:"id"`
	Input       string                  `json:"input"`
	State       generation.State        `json:"state"`
	Transitions []generation.Transition `json:"transitions"`
	Result      *generation.Result      `json:"result,omitempty"`
}

type ContextSnapshot struct {
	ContextID    string               `json:"context_id"`
	State        generation.State     `json:"state"`
	Conversation continuity.Ref       `json:"conversation"`
	History      []continuity.Message `json:"history"`
	Session      *SessionSnapshot     `json:"session,omitempty"`
}

type StoredMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id,omitempty"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
