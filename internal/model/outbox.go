package model

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateOutboxMessage 在同一个事务中写入 Outbox 消息
func CreateOutboxMessage(tx *gorm.DB, topic, key string, payload interface{}) (*OutboxMessage, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	msg := OutboxMessage{
		MessageID: uuid.NewString(),
		Topic:     topic,
		Key:       key,
		Payload:   payloadBytes,
		Status:    OutboxPending,
	}
	if err := tx.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}
