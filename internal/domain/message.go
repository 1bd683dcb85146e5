package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// ChatMessage is never mutated after creation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}
