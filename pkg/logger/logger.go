package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log 全局 Logger, 调用 Init 之前为 Nop, 测试中无需初始化
var Log = zap.NewNop()

// Init 根据运行环境初始化全局 Logger
// production: JSON + ISO8601 时间; 其它: 控制台彩色输出. 两者都写 stderr,
// CLI 的 stdout 只留给事件输出.
// fields 会附加到每一条日志, 例如 zap.String("service", "product-server")
func Init(env string, fields ...zap.Field) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	Log = l.With(fields...)
	zap.ReplaceGlobals(Log)
}

func Sync() {
	_ = Log.Sync()
}

// With 返回带固定字段的子 Logger, 直接调用不经过本包的 helper, 所以撤销 CallerSkip
func With(fields ...zap.Field) *zap.Logger {
	return Log.WithOptions(zap.AddCallerSkip(-1)).With(fields...)
}

func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Log.Fatal(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }
