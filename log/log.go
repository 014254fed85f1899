// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log provides package loggers bound to the process root logger at call time,
// so loggers declared at package init follow the handler installed later by Init.
package log

import (
	"io"
	"log/slog"
	"os"

	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// Logger writes leveled key/value records.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
}

type contextLogger struct {
	ctx []any
}

// WithContext returns a logger adding ctx to every record.
func WithContext(ctx ...any) Logger {
	return &contextLogger{ctx}
}

func (l *contextLogger) with(ctx []any) []any {
	out := make([]any, 0, len(l.ctx)+len(ctx))
	return append(append(out, l.ctx...), ctx...)
}

func (l *contextLogger) Trace(msg string, ctx ...any) { ethlog.Root().Trace(msg, l.with(ctx)...) }
func (l *contextLogger) Debug(msg string, ctx ...any) { ethlog.Root().Debug(msg, l.with(ctx)...) }
func (l *contextLogger) Info(msg string, ctx ...any)  { ethlog.Root().Info(msg, l.with(ctx)...) }
func (l *contextLogger) Warn(msg string, ctx ...any)  { ethlog.Root().Warn(msg, l.with(ctx)...) }
func (l *contextLogger) Error(msg string, ctx ...any) { ethlog.Root().Error(msg, l.with(ctx)...) }

func Info(msg string, ctx ...any) { ethlog.Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...any) { ethlog.Root().Warn(msg, ctx...) }

// Options for Init.
type Options struct {
	// Verbosity is the legacy level, 0 (crit) to 5 (trace).
	Verbosity int
	JSON      bool
}

// Init installs the root handler writing to w. Terminal output is colored when w is a tty.
func Init(w io.Writer, opts Options) {
	lvl := ethlog.FromLegacyLevel(opts.Verbosity)

	var handler slog.Handler
	if opts.JSON {
		handler = ethlog.JSONHandlerWithLevel(w, lvl)
	} else {
		handler = ethlog.NewTerminalHandlerWithLevel(w, lvl, useColor(w))
	}
	ethlog.SetDefault(ethlog.NewLogger(handler))
}

func useColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
