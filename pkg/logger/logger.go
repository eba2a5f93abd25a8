package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger. WALLETFOLIO_ENV=production selects the
// JSON production encoder; anything else gets the coloured development one.
// A non-empty path redirects output to that file, which keeps the terminal
// free while the dashboard is running.
func New(path string) (*zap.Logger, error) {
	env := os.Getenv("WALLETFOLIO_ENV")
	if env == "" {
		env = "development"
	}

	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if path != "" {
		config.OutputPaths = []string{path}
		config.ErrorOutputPaths = []string{path}
		// no ANSI colours in a file
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	return config.Build()
}
