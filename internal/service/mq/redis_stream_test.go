package mq

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisProducerPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewRedisProducer(client, 0)
	require.NoError(t, p.Publish(context.Background(), "product_events_finalized", "7", []byte(`{"event":"NewProduct"}`)))

	msgs, err := client.XRange(context.Background(), "product_events_finalized", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "7", msgs[0].Values["key"])
	assert.Equal(t, `{"event":"NewProduct"}`, msgs[0].Values["payload"])
}

func TestRedisConsumerDeliversAndAcks(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 预先建组, Subscribe 遇到 BUSYGROUP 继续使用已有组
	require.NoError(t, client.XGroupCreateMkStream(ctx, "events", "test-group", "$").Err())

	c := NewRedisConsumer(client, "test-group", "c1")
	c.block = 50 * time.Millisecond

	got := make(chan *Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Subscribe(ctx, "events", func(msg *Message) error {
			got <- msg
			return nil
		})
	}()

	require.NoError(t, NewRedisProducer(client, 0).Publish(ctx, "events", "1", []byte("hello")))

	select {
	case msg := <-got:
		assert.Equal(t, "1", msg.Key)
		assert.Equal(t, []byte("hello"), msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	assert.NoError(t, <-done)
}
