package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aweist/whistle-bot/config"
)

// New builds the process logger and tees every entry into a Recorder so
// the owner can read recent lines over DM.
func New(cfg *config.Config) (*zap.Logger, *Recorder, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	if cfg.Log.File != "" {
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, cfg.Log.File)
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	recorder := NewRecorder(cfg.Log.BufferLines)
	recorderCore := recorder.Core(zapCfg.EncoderConfig, zapCfg.Level)

	logger, err := zapCfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, recorderCore)
	}))
	if err != nil {
		return nil, nil, err
	}

	return logger, recorder, nil
}
