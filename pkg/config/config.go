package config

import (
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Signer SignerConfig `mapstructure:"signer"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Events EventsConfig `mapstructure:"events"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Lock   LockConfig   `mapstructure:"lock"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	GrpcPort string `mapstructure:"grpc_port"`
}

// LedgerConfig 链节点与合约相关配置
type LedgerConfig struct {
	RpcUrl          string        `mapstructure:"rpc_url"`
	ContractAddr    string        `mapstructure:"contract_addr"`
	ChainID         int64         `mapstructure:"chain_id"`      // 0 表示启动时向节点查询
	CreatedBlock    uint64        `mapstructure:"created_block"` // 合约部署高度
	GasLimit        uint64        `mapstructure:"gas_limit"`
	MinConfirmation uint64        `mapstructure:"min_confirmation"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"` // 0 表示一直等待
	MaxWaiters      int           `mapstructure:"max_waiters"`
	RateLimitRPS    float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
}

// SignerConfig 签名方式: remote 走签名服务, local 使用本地私钥
type SignerConfig struct {
	Mode         string        `mapstructure:"mode"`
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Key          string        `mapstructure:"key"`           // 签名服务使用的私钥 (环境变量 KEY)
	KeystorePath string        `mapstructure:"keystore_path"` // 加密私钥文件
	Password     string        `mapstructure:"password"`
}

type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// EventsConfig 最终确认事件的投递方式
type EventsConfig struct {
	Sink            string        `mapstructure:"sink"` // log / stdout / mq / outbox
	Topic           string        `mapstructure:"topic"`
	OutboxRetention time.Duration `mapstructure:"outbox_retention"` // 已投递消息保留时长
}

type CacheConfig struct {
	ProductsTTL time.Duration `mapstructure:"products_ttl"`
}

type LockConfig struct {
	SenderLock bool          `mapstructure:"sender_lock"`
	TTL        time.Duration `mapstructure:"ttl"`
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量: ledger.rpc_url -> LEDGER_RPC_URL
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindLegacyEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	n, err := parseThreshold(viper.Get(minConfirmationKey))
	if err != nil {
		log.Fatalf("Invalid %s: %v", minConfirmationKey, err)
	}
	threshold.Store(n)

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Watch 监听配置文件变化, 变化后重新解析到 Global
// MinConfirmations 等按调用读取的配置会立即生效
func Watch() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		reload(e.Name)
	})
	viper.WatchConfig()
}

// reload 解析失败时保留上一次的配置
func reload(name string) {
	var next Config
	if err := viper.Unmarshal(&next); err != nil {
		log.Printf("Warning: reload config %s failed: %v", name, err)
		return
	}
	if _, err := parseThreshold(viper.Get(minConfirmationKey)); err != nil {
		log.Printf("Warning: reload config %s rejected, keep min_confirmation=%d: %v", name, threshold.Load(), err)
		return
	}
	next.Ledger.MinConfirmation = MinConfirmations()
	Global = next
	log.Printf("Config reloaded: %s", name)
}

const minConfirmationKey = "ledger.min_confirmation"

// threshold 最近一次合法的最小确认数
var (
	threshold atomic.Uint64
	badMu     sync.Mutex
	lastBad   string
)

func init() {
	threshold.Store(3)
}

// MinConfirmations 每次调用时读取最小确认数, 运维可在不重启的情况下调整 (环境变量或配置文件)
// 非法值 (非数字, 负数, 小数) 不生效, 继续使用上一次的合法值
func MinConfirmations() uint64 {
	raw := viper.Get(minConfirmationKey)
	n, err := parseThreshold(raw)
	if err != nil {
		warnBadThreshold(raw, err)
		return threshold.Load()
	}
	threshold.Store(n)
	return n
}

// warnBadThreshold 同一个非法值只告警一次
func warnBadThreshold(raw interface{}, err error) {
	s := fmt.Sprint(raw)
	badMu.Lock()
	defer badMu.Unlock()
	if s == lastBad {
		return
	}
	lastBad = s
	log.Printf("Warning: ignore %s=%q, keep %d: %v", minConfirmationKey, s, threshold.Load(), err)
}

func parseThreshold(raw interface{}) (uint64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, fmt.Errorf("%s is not set", minConfirmationKey)
	case float32:
		if float64(v) != math.Trunc(float64(v)) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
	case string:
		// 环境变量可能带首尾空白
		raw = strings.TrimSpace(v)
	}
	return cast.ToUint64E(raw)
}

// bindLegacyEnv 兼容旧部署使用的环境变量名
func bindLegacyEnv() {
	_ = viper.BindEnv("ledger.rpc_url", "LEDGER_RPC_URL", "PROVIDER")
	_ = viper.BindEnv("ledger.contract_addr", "LEDGER_CONTRACT_ADDR", "CONTRACT_ADDR")
	_ = viper.BindEnv("ledger.min_confirmation", "LEDGER_MIN_CONFIRMATION", "MINIMUM_CONFIRMATION")
	_ = viper.BindEnv("signer.endpoint", "SIGNER_ENDPOINT", "SIGNER_URL")
	_ = viper.BindEnv("signer.key", "SIGNER_KEY", "KEY")
}

func setDefaults() {
	viper.SetDefault("app.name", "product-ledger")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")
	viper.SetDefault("app.grpc_port", "50051")

	viper.SetDefault("ledger.rpc_url", "https://matic-mumbai.chainstacklabs.com")
	viper.SetDefault("ledger.contract_addr", "0xd9E0b2C0724F3a01AaECe3C44F8023371f845196")
	viper.SetDefault("ledger.chain_id", 0)
	viper.SetDefault("ledger.created_block", 22660777)
	viper.SetDefault("ledger.gas_limit", 210000)
	viper.SetDefault("ledger.min_confirmation", 3)
	viper.SetDefault("ledger.poll_interval", 2*time.Second)
	viper.SetDefault("ledger.confirm_interval", 3*time.Second)
	viper.SetDefault("ledger.confirm_timeout", 0)
	viper.SetDefault("ledger.max_waiters", 256)
	viper.SetDefault("ledger.rate_limit_rps", 10)
	viper.SetDefault("ledger.rate_limit_burst", 20)
	viper.SetDefault("ledger.call_timeout", 15*time.Second)

	viper.SetDefault("signer.mode", "remote")
	viper.SetDefault("signer.endpoint", "http://localhost:5001/")
	viper.SetDefault("signer.timeout", 10*time.Second)
	viper.SetDefault("signer.keystore_path", "signer.json")

	viper.SetDefault("db.enabled", false)
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "ledger_user")
	viper.SetDefault("db.password", "ledger_password")
	viper.SetDefault("db.name", "ledger_db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("events.sink", "log")
	viper.SetDefault("events.topic", "product_events_finalized")
	viper.SetDefault("events.outbox_retention", 7*24*time.Hour)

	viper.SetDefault("cache.products_ttl", time.Second)

	viper.SetDefault("lock.sender_lock", false)
	viper.SetDefault("lock.ttl", 30*time.Second)
}
