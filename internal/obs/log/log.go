// Package log configures the process-wide zap logger. It mirrors the
// teacher's pattern of selecting a terminal handler when attached to a TTY
// (see cmd/evm-node's log.SetDefault(log.NewTerminalHandlerWithLevel(...)))
// but speaks zap instead of the upstream geth log package.
package log

import (
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger at the given level ("debug", "info", "warn",
// "error"). When stderr is a TTY it uses a colorized console encoder;
// otherwise JSON, suitable for log aggregation.
func New(levelName string) *zap.Logger {
	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(levelName))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	if isatty.IsTerminal(os.Stderr.Fd()) {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder := zapcore.NewConsoleEncoder(encCfg)
		core = zapcore.NewCore(encoder, zapcore.AddSync(colorable.NewColorableStderr()), level)
	} else {
		encoder := zapcore.NewJSONEncoder(encCfg)
		core = zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level)
	}

	return zap.New(core, zap.AddCaller())
}

// Nop returns a logger that discards everything, for tests.
func Nop() *zap.Logger { return zap.NewNop() }
