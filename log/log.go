// Copyright 2024 The catprotocol Authors
// This file is part of the catprotocol library.

// Package log provides the module-scoped structured logger every node in
// the protocol uses: a thin wrapper over zap that tags each logger with
// the subsystem it belongs to (CL, a specific chain's HIG, HS) the same
// way the teacher's common package pulls a named logger off a shared
// core (log.NewModuleLogger(log.Common)).
package log

import (
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a module-scoped logger. It is a thin alias over *zap.SugaredLogger
// so call sites read as logger.Infow("message", "key", value, ...).
type Logger = *zap.SugaredLogger

// atomicLevel backs every logger's core, so SetLevel can adjust the
// minimum level of loggers already handed out (e.g. a package-level
// logger built at init time, before catsim's --verbose flag is parsed) without
// rebuilding the encoder/output pair.
var atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

var root = newRoot()

func newRoot() *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	var out zapcore.WriteSyncer
	if isTerminal() {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
		out = zapcore.AddSync(colorable.NewColorableStderr())
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
		out = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(enc, out, atomicLevel)
	return zap.New(core)
}

func isTerminal() bool {
	return color.NoColor == false
}

// NewModuleLogger returns a logger tagged with the given subsystem name,
// e.g. NewModuleLogger("HIG:chain-1").
func NewModuleLogger(name string) Logger {
	return root.Sugar().With("module", name)
}

// SetLevel adjusts the minimum level of every logger sharing atomicLevel,
// including ones already built; catsim's --verbose flag uses it.
func SetLevel(level zapcore.Level) {
	atomicLevel.SetLevel(level)
}
