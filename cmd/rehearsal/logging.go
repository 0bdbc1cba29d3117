package main

import (
	"context"
	"strings"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/rehearsal"
	"github.com/zoobzio/rehearsal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

type stringKey interface {
	From(*capitan.Event) (string, bool)
}

type intKey interface {
	From(*capitan.Event) (int, bool)
}

type eventField func(*capitan.Event) (zap.Field, bool)

func str(name string, key stringKey) eventField {
	return func(e *capitan.Event) (zap.Field, bool) {
		v, ok := key.From(e)
		if !ok || v == "" {
			return zap.Field{}, false
		}
		return zap.String(name, v), true
	}
}

func num(name string, key intKey) eventField {
	return func(e *capitan.Event) (zap.Field, bool) {
		v, ok := key.From(e)
		if !ok {
			return zap.Field{}, false
		}
		return zap.Int(name, v), true
	}
}

var summaryFields = []eventField{
	str("request_id", rehearsal.RequestIDKey),
	str("call_site", rehearsal.CallSiteKey),
	str("provider", rehearsal.ProviderKey),
	str("model", rehearsal.ModelKey),
	num("attempt", rehearsal.AttemptKey),
	num("max_attempts", rehearsal.MaxAttemptsKey),
	num("delay_ms", rehearsal.DelayMsKey),
	str("variant", rehearsal.VariantKey),
	str("error", rehearsal.ErrorKey),
	str("error_type", rehearsal.ErrorTypeKey),
	num("status", rehearsal.HTTPStatusCodeKey),
	str("api_error_type", rehearsal.APIErrorTypeKey),
	str("response_id", rehearsal.ResponseIDKey),
	str("finish_reason", rehearsal.FinishReasonKey),
	num("prompt_tokens", rehearsal.PromptTokensKey),
	num("completion_tokens", rehearsal.CompletionTokensKey),
	num("total_tokens", rehearsal.TotalTokensKey),
	num("duration_ms", rehearsal.DurationMsKey),
}

// Large payloads, logged at debug level only.
var payloadFields = []eventField{
	str("prompt", rehearsal.PromptKey),
	str("response", rehearsal.ResponseKey),
	str("output", rehearsal.OutputKey),
}

// logEvent writes every rehearsal hook event through logger.
func logEvent(logger *zap.Logger) func(context.Context, *capitan.Event) {
	return func(_ context.Context, e *capitan.Event) {
		signal := string(e.Signal())
		if !strings.HasPrefix(signal, "rehearsal.") {
			return
		}

		fields := collect(e, summaryFields)
		if logger.Core().Enabled(zapcore.DebugLevel) {
			fields = append(fields, collect(e, payloadFields)...)
		}

		switch {
		case strings.HasSuffix(signal, ".exhausted"):
			logger.Error(signal, fields...)
		case strings.HasSuffix(signal, ".failed"):
			logger.Warn(signal, fields...)
		case strings.HasSuffix(signal, ".started"):
			logger.Debug(signal, fields...)
		default:
			logger.Info(signal, fields...)
		}
	}
}

func collect(e *capitan.Event, extractors []eventField) []zap.Field {
	fields := make([]zap.Field, 0, len(extractors))
	for _, extract := range extractors {
		if f, ok := extract(e); ok {
			fields = append(fields, f)
		}
	}
	return fields
}
