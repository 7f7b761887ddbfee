package xzap

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

// CtxTraceId 链路id在ctx中的键
const CtxTraceId ctxKey = "trace_id"

var std = mustBuild("info")

func mustBuild(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lv, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lv)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// SetUp 按配置的级别重建全局logger
func SetUp(level string) {
	std = mustBuild(level)
}

// WithContext 带上ctx里的trace id
func WithContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return std
	}
	if traceId, ok := ctx.Value(CtxTraceId).(string); ok && traceId != "" {
		return std.With(zap.String("trace_id", traceId))
	}
	return std
}
