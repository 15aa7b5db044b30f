// Package watchlist keeps the in-memory set of addresses whose incoming
// delegations are reported. It is not persisted and starts empty.
package watchlist

import (
	"sync"

	"github.com/alfarkas/basic-contract-interaction/pkg/errno"
	"github.com/alfarkas/basic-contract-interaction/pkg/monitor"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotSubscribed 取消订阅一个不存在的地址
var ErrNotSubscribed = errno.ErrNotSubscribed

// WatchList 订阅地址集合, 并发安全
type WatchList struct {
	mu    sync.RWMutex
	addrs map[common.Address]struct{}
}

func New() *WatchList {
	return &WatchList{addrs: make(map[common.Address]struct{})}
}

// Subscribe 重复订阅不报错
func (w *WatchList) Subscribe(addr common.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addrs[addr] = struct{}{}
	monitor.Business.WatchListSize.Set(float64(len(w.addrs)))
}

func (w *WatchList) Unsubscribe(addr common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.addrs[addr]; !ok {
		return ErrNotSubscribed
	}
	delete(w.addrs, addr)
	monitor.Business.WatchListSize.Set(float64(len(w.addrs)))
	return nil
}

func (w *WatchList) IsSubscribed(addr common.Address) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.addrs[addr]
	return ok
}

// Snapshot 返回副本, 调用方修改不影响本集合
func (w *WatchList) Snapshot() map[common.Address]struct{} {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[common.Address]struct{}, len(w.addrs))
	for a := range w.addrs {
		out[a] = struct{}{}
	}
	return out
}

func (w *WatchList) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.addrs)
}
