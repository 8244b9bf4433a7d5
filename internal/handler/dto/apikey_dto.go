package dto

import (
	"time"

	"github.com/google/uuid"
)

type GenerateAPIKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

type GenerateAPIKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type APIKeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   *time.Time `json:"last_used,omitempty"`
	UsageCount int64      `json:"usage_count"`
	IsActive   bool       `json:"is_active"`
}
