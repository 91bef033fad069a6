package models

import (
	"fmt"
	"strings"
	"time"
)

// ConversationTurn è uno scambio domanda/risposta salvato per la memoria
type ConversationTurn struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ChatID      int64     `json:"chat_id" gorm:"not null;index:idx_memory_lookup"`
	UserID      int64     `json:"user_id" gorm:"not null;index:idx_memory_lookup"`
	Topic       string    `json:"topic" gorm:"not null;default:'general';index:idx_memory_lookup"`
	UserMessage string    `json:"user_message" gorm:"type:text;not null"`
	AIResponse  string    `json:"ai_response" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifica il nome della tabella
func (ConversationTurn) TableName() string {
	return "user_memory"
}

// Format rende il turno come testo di contesto
func (t ConversationTurn) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Пользователь: %s", t.UserMessage)
	if t.AIResponse != "" {
		fmt.Fprintf(&b, "\nАссистент: %s", t.AIResponse)
	}
	return b.String()
}
