package logging

import (
	"go.uber.org/zap"
)

var Logger = zap.NewNop().Sugar()

// InitLogger configura o logger global. Logs vão para stderr; o relatório
// fica sozinho no stdout.
func InitLogger(debug bool) error {
	logger, err := New(debug)
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

func New(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.DisableStacktrace = true
	}
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func Sync() {
	_ = Logger.Sync()
}
