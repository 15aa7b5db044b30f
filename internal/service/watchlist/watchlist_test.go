package watchlist

import (
	"errors"
	"sync"
	"testing"

	"github.com/alfarkas/basic-contract-interaction/pkg/errno"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestSubscribeUnsubscribe(t *testing.T) {
	w := New()
	assert.False(t, w.IsSubscribed(alice))

	w.Subscribe(alice)
	w.Subscribe(alice)
	assert.True(t, w.IsSubscribed(alice))
	assert.Equal(t, 1, w.Len())

	assert.NoError(t, w.Unsubscribe(alice))
	assert.False(t, w.IsSubscribed(alice))
}

func TestUnsubscribeAbsent(t *testing.T) {
	w := New()
	err := w.Unsubscribe(bob)
	assert.True(t, errors.Is(err, errno.ErrNotSubscribed))
}

func TestSnapshotIsCopy(t *testing.T) {
	w := New()
	w.Subscribe(alice)

	snap := w.Snapshot()
	delete(snap, alice)
	snap[bob] = struct{}{}

	assert.True(t, w.IsSubscribed(alice))
	assert.False(t, w.IsSubscribed(bob))
	assert.Len(t, w.Snapshot(), 1)
}

func TestConcurrentAccess(t *testing.T) {
	w := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		addr := common.BigToAddress(common.Big1)
		go func() {
			defer wg.Done()
			w.Subscribe(addr)
		}()
		go func() {
			defer wg.Done()
			_ = w.IsSubscribed(addr)
			_ = w.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, w.Len())
}
