package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alfarkas/basic-contract-interaction/internal/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	topic, key string
	payload    []byte
	err        error
}

func (p *recordingProducer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	p.topic, p.key, p.payload = topic, key, payload
	return p.err
}

var sampleEvent = model.LedgerEvent{
	ProductID:   9,
	BlockNumber: 42,
	TxHash:      common.HexToHash("0xaa"),
	Payload:     model.ProductCreated{Name: "table"},
}

func TestPublishSinkUsesProductKey(t *testing.T) {
	p := &recordingProducer{}
	require.NoError(t, NewPublishSink(p, "product_events_finalized").Emit(context.Background(), sampleEvent))

	assert.Equal(t, "product_events_finalized", p.topic)
	assert.Equal(t, "9", p.key)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(p.payload, &decoded))
	assert.Equal(t, "NewProduct", decoded["event"])
}

func TestWriterSinkWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)
	require.NoError(t, s.Emit(context.Background(), sampleEvent))
	require.NoError(t, s.Emit(context.Background(), sampleEvent))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)
	assert.True(t, json.Valid(lines[0]))
}

func TestMultiSinkContinuesAfterFailure(t *testing.T) {
	failing := &recordingProducer{err: errors.New("broker down")}
	ch := NewChannelSink(1)

	err := MultiSink{NewPublishSink(failing, "t"), ch}.Emit(context.Background(), sampleEvent)
	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, sampleEvent, <-ch.Events())
}

func TestChannelSinkRespectsContext(t *testing.T) {
	ch := NewChannelSink(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.Emit(ctx, sampleEvent), context.Canceled)
}
