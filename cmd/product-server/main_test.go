package main

import (
	"testing"

	"github.com/alfarkas/basic-contract-interaction/pkg/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCheckEventsConfig(t *testing.T) {
	db := &gorm.DB{}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	events := func(sink, mqType string) config.Config {
		var cfg config.Config
		cfg.Events.Sink = sink
		cfg.Redis.MQType = mqType
		return cfg
	}

	tests := []struct {
		name string
		cfg  config.Config
		db   *gorm.DB
		rdb  *redis.Client
		want error
	}{
		{"log needs nothing", events("log", "redis"), nil, nil, nil},
		{"stdout needs nothing", events("stdout", "redis"), nil, nil, nil},
		{"outbox without db or redis reports db", events("outbox", "redis"), nil, nil, errOutboxNeedsDB},
		{"outbox without redis", events("outbox", "redis"), db, nil, errStreamsNeedRedis},
		{"outbox over kafka", events("outbox", "kafka"), db, nil, nil},
		{"outbox over redis", events("outbox", "redis"), db, rdb, nil},
		{"mq without redis", events("mq", "redis"), nil, nil, errStreamsNeedRedis},
		{"mq over kafka", events("mq", "kafka"), nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkEventsConfig(tt.cfg, tt.db, tt.rdb)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Error(t, checkEventsConfig(events("carrier-pigeon", "redis"), db, rdb))
}
