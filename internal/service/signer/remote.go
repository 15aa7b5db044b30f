package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const maxResponseBytes = 1 << 20

// RemoteSigner 把未签名交易交给签名服务 (POST endpoint), 本进程不持有私钥
type RemoteSigner struct {
	endpoint   string
	httpClient *http.Client
}

func NewRemoteSigner(endpoint string, timeout time.Duration) *RemoteSigner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteSigner{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *RemoteSigner) Mode() string {
	return ModeRemote
}

func (s *RemoteSigner) Sign(ctx context.Context, utx *types.UnsignedTransaction) (*types.SignedTransaction, error) {
	// 1. 发送请求
	body, err := json.Marshal(utx)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call signer: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read signer response: %w", err)
	}

	// 2. 签名服务的错误统一放在 error 字段
	var signErr types.SignError
	if json.Unmarshal(payload, &signErr) == nil && signErr.Error != "" {
		return nil, fmt.Errorf("signer rejected transaction: %s", signErr.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signer returned status %d", resp.StatusCode)
	}

	var signed types.SignedTransaction
	if err := json.Unmarshal(payload, &signed); err != nil {
		return nil, fmt.Errorf("decode signer response: %w", err)
	}
	if signed.RawTransaction == "" {
		return nil, errors.New("signer response has no rawTransaction")
	}

	// 3. 校验返回的交易确实是我们请求签名的那一笔
	tx, _, err := DecodeSigned(&signed)
	if err != nil {
		return nil, err
	}
	if err := matches(tx, utx); err != nil {
		return nil, err
	}
	return &signed, nil
}

func matches(tx *ethtypes.Transaction, utx *types.UnsignedTransaction) error {
	want, chainID, err := ToEthTx(utx)
	if err != nil {
		return err
	}
	if tx.To() == nil {
		return errors.New("signed transaction has no recipient")
	}
	if tx.Nonce() != want.Nonce() || tx.Gas() != want.Gas() || tx.GasPrice().Cmp(want.GasPrice()) != 0 ||
		*tx.To() != *want.To() || !bytes.Equal(tx.Data(), want.Data()) || tx.Value().Cmp(want.Value()) != 0 {
		return errors.New("signed transaction differs from the request")
	}
	if utx.From != "" {
		from, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), tx)
		if err != nil {
			return fmt.Errorf("recover signer: %w", err)
		}
		if from != common.HexToAddress(utx.From) {
			return ErrSenderMismatch
		}
	}
	return nil
}
