// Copyright (c) 2026 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log wraps the go-ethereum structured logger.
// Package level loggers are created before the root handler is configured,
// so they forward every record to the root handler current at log time.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"

	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// Logger is the structured logger.
type Logger = ethlog.Logger

// Root returns the root logger.
func Root() Logger {
	return ethlog.Root()
}

// SetDefault replaces the root logger.
func SetDefault(l Logger) {
	ethlog.SetDefault(l)
}

// WithContext returns a logger carrying the given key-value context.
func WithContext(ctx ...any) Logger {
	return ethlog.NewLogger(&forwardHandler{}).With(ctx...)
}

// Setup installs a root logger writing to w at the given legacy verbosity (0-5).
// Terminal output is colored when w is a tty, unless json is set.
func Setup(w io.Writer, verbosity int, json bool) {
	var h slog.Handler
	if json {
		h = ethlog.JSONHandler(w)
	} else {
		h = ethlog.NewTerminalHandler(w, isTerminal(w))
	}
	glog := ethlog.NewGlogHandler(h)
	glog.Verbosity(ethlog.FromLegacyLevel(verbosity))
	SetDefault(ethlog.NewLogger(glog))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// forwardHandler delegates to the root handler. The go-ethereum handlers don't
// support groups, so a group qualifies the keys of attrs added after it.
type forwardHandler struct {
	attrs  []slog.Attr
	prefix string
}

func (h *forwardHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return Root().Handler().Enabled(ctx, level)
}

func (h *forwardHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.prefix != "" {
		qualified := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
		r.Attrs(func(a slog.Attr) bool {
			qualified.AddAttrs(h.qualify(a))
			return true
		})
		r = qualified
	}
	return Root().Handler().WithAttrs(h.attrs).Handle(ctx, r)
}

func (h *forwardHandler) qualify(a slog.Attr) slog.Attr {
	a.Key = h.prefix + a.Key
	return a
}

func (h *forwardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := slices.Clone(h.attrs)
	for _, a := range attrs {
		merged = append(merged, h.qualify(a))
	}
	return &forwardHandler{merged, h.prefix}
}

func (h *forwardHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &forwardHandler{slices.Clone(h.attrs), h.prefix + name + "."}
}
