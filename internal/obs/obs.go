// Package obs sets up the structured logger shared by the Mirror Engine,
// Range Provider, and both CLI binaries.
package obs

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the production logging configuration: JSON encoding,
// ISO8601 timestamps, and a "pid" field on every entry, matching the
// config shape used by the pwned-passwords-domain prior art this mirror
// is modeled on.
func NewLogger() (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zap.InfoLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]any{
			"pid": os.Getpid(),
		},
	}

	return cfg.Build()
}

// NewNop returns a logger that discards everything, for tests and REPL
// tooling that wants the Engine's constructor signature without log noise.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
