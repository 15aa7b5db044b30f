package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Submission 已广播交易的记录 (仅在启用数据库时写入)
type Submission struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TxHash      string          `gorm:"type:varchar(66);not null;uniqueIndex" json:"tx_hash"`
	Method      string          `gorm:"type:varchar(32);not null" json:"method"`
	ProductID   *uint64         `json:"product_id,omitempty"`
	FromAddress string          `gorm:"type:varchar(42);not null;index" json:"from"`
	NewOwner    string          `gorm:"type:varchar(42)" json:"new_owner,omitempty"`
	Nonce       uint64          `gorm:"not null" json:"nonce"`
	GasLimit    uint64          `gorm:"not null" json:"gas_limit"`
	GasPrice    decimal.Decimal `gorm:"type:decimal(38,0);not null" json:"gas_price"` // wei
	SignerMode  string          `gorm:"type:varchar(16);not null" json:"signer"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Outbox 消息状态
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
)

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"message_id"`
	Topic     string     `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string     `gorm:"type:varchar(255)" json:"key"` // 分区键
	Payload   []byte     `gorm:"type:text;not null" json:"payload"`
	Status    string     `gorm:"type:varchar(50);not null;default:'PENDING';index" json:"status"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
