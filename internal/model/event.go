package model

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind 合约事件名
type EventKind string

const (
	EventCreated   EventKind = "NewProduct"
	EventDelegated EventKind = "DelegateProduct"
	EventAccepted  EventKind = "AcceptProduct"
)

// EventKinds 需要轮询的全部事件
func EventKinds() []EventKind {
	return []EventKind{EventCreated, EventDelegated, EventAccepted}
}

// EventPayload 按事件类型区分的字段
type EventPayload interface {
	Kind() EventKind
}

type ProductCreated struct {
	Name string `json:"name"`
}

func (ProductCreated) Kind() EventKind { return EventCreated }

type ProductDelegated struct {
	NewOwner common.Address `json:"newOwner"`
	Status   uint8          `json:"status"`
}

func (ProductDelegated) Kind() EventKind { return EventDelegated }

type ProductAccepted struct {
	Name   string `json:"name"`
	Status uint8  `json:"status"`
}

func (ProductAccepted) Kind() EventKind { return EventAccepted }

// LedgerEvent 链上产生的合约事件, 本系统只读
type LedgerEvent struct {
	ProductID   uint64
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Payload     EventPayload
}

func (e LedgerEvent) Kind() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// NewOwner 仅 DelegateProduct 事件有新 owner
func (e LedgerEvent) NewOwner() (common.Address, bool) {
	d, ok := e.Payload.(ProductDelegated)
	if !ok {
		return common.Address{}, false
	}
	return d.NewOwner, true
}

type eventJSON struct {
	Event           EventKind              `json:"event"`
	Args            map[string]interface{} `json:"args"`
	BlockNumber     uint64                 `json:"blockNumber"`
	TransactionHash string                 `json:"transactionHash"`
	LogIndex        uint                   `json:"logIndex"`
}

// MarshalJSON 输出 {event, args, blockNumber, transactionHash, logIndex}
func (e LedgerEvent) MarshalJSON() ([]byte, error) {
	args := map[string]interface{}{"productId": e.ProductID}
	switch p := e.Payload.(type) {
	case ProductCreated:
		args["name"] = p.Name
	case ProductDelegated:
		args["newOwner"] = p.NewOwner.Hex()
		args["status"] = p.Status
	case ProductAccepted:
		args["name"] = p.Name
		args["status"] = p.Status
	}
	return json.Marshal(eventJSON{
		Event:           e.Kind(),
		Args:            args,
		BlockNumber:     e.BlockNumber,
		TransactionHash: e.TxHash.Hex(),
		LogIndex:        e.LogIndex,
	})
}
