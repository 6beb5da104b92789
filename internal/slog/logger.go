// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package slog wires this codebase's structured logger onto the single
// host callback the trusted core is allowed to call: logger(message).
// Nothing in the core writes to stdout/stderr directly.
package slog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink is the host callback signature: logger(message).
type Sink func(message string)

// New builds a *zap.Logger whose only output path is sink. When sink is
// nil, log records are dropped (useful for benchmarks and fuzzing where
// the host loop is not wired up).
func New(component string, sink Sink) *zap.Logger {
	if sink == nil {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&sinkWriter{sink: sink}),
		zapcore.DebugLevel,
	)
	return zap.New(core).Named(component)
}

// sinkWriter adapts the Sink function to zapcore.WriteSyncer.
type sinkWriter struct {
	sink Sink
}

func (w *sinkWriter) Write(p []byte) (int, error) {
	w.sink(string(p))
	return len(p), nil
}

func (w *sinkWriter) Sync() error { return nil }
