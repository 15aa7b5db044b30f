package model

// ConfirmationState 交易确认状态, 每次查询时计算, 不落库
type ConfirmationState struct {
	TxHash        string `json:"tx_hash"`
	Found         bool   `json:"found"`
	Successful    bool   `json:"successful"`
	BlockNumber   uint64 `json:"block_number"`
	CurrentHeight uint64 `json:"current_height"`
	Confirmations uint64 `json:"confirmations"`
	Threshold     uint64 `json:"threshold"`
	Final         bool   `json:"final"`
}
