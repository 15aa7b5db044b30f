package types

// UnsignedTransaction 待签名的合约调用交易
// 字段名与签名服务的 JSON 协议保持一致 (gas / gasPrice / chainId)
type UnsignedTransaction struct {
	From     string `json:"from"`
	To       string `json:"to"`             // 合约地址
	Value    string `json:"value"`          // wei, 十进制字符串
	Nonce    uint64 `json:"nonce"`          // 构建时从节点查询
	Gas      uint64 `json:"gas"`            // 固定 gasLimit
	GasPrice string `json:"gasPrice"`       // wei, 十进制字符串
	Data     string `json:"data,omitempty"` // 0x 开头的 ABI 编码调用数据
	ChainID  int64  `json:"chainId"`        // EIP-155
}

// SignedTransaction 签名结果, 只广播一次
type SignedTransaction struct {
	RawTransaction string `json:"rawTransaction"` // 0x 开头的 RLP 编码
	Hash           string `json:"hash"`
	R              string `json:"r,omitempty"`
	S              string `json:"s,omitempty"`
	V              string `json:"v,omitempty"`
}

// SignError 签名服务失败时的返回体
type SignError struct {
	Error string `json:"error"`
}
