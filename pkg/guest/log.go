package guest

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/liangcheng-yu/hyperlight/internal/wire"
)

// Logger returns a structured logger whose records cross the sandbox
// boundary: each one is serialized as a log frame, pushed on the output
// buffer, and signalled to the host on the log port. Levels below the
// verbosity the host asked for at entry are dropped in Enabled, before any
// allocation.
func (rt *Runtime) Logger() *slog.Logger {
	if rt.logger == nil {
		rt.logger = slog.New(&outbHandler{rt: rt})
	}
	return rt.logger
}

type outbHandler struct {
	rt    *Runtime
	attrs []slog.Attr
	group string
}

func (h *outbHandler) Enabled(_ context.Context, level slog.Level) bool {
	return wireLevel(level) >= h.rt.maxLogLevel
}

func (h *outbHandler) Handle(_ context.Context, rec slog.Record) error {
	msg := rec.Message
	var parts []string
	appendAttr := func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		parts = append(parts, fmt.Sprintf("%s=%v", key, a.Value))
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	rec.Attrs(appendAttr)
	if len(parts) > 0 {
		msg = msg + " " + strings.Join(parts, " ")
	}

	caller, file, line := callerInfo(rec.PC)
	frame := &wire.LogRecord{
		Level:      wireLevel(rec.Level),
		Message:    msg,
		Source:     "guest",
		Caller:     caller,
		SourceFile: file,
		Line:       int32(line),
	}
	return h.rt.emitLog(frame)
}

func (h *outbHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &out
}

func (h *outbHandler) WithGroup(name string) slog.Handler {
	out := *h
	if out.group != "" {
		out.group += "." + name
	} else {
		out.group = name
	}
	return &out
}

func callerInfo(pc uintptr) (fn, file string, line int) {
	if pc == 0 {
		return "", "", 0
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	return f.Function, f.File, f.Line
}

// emitLog pushes a log frame and signals the host. The host pops the frame
// while servicing the port, so the output stack is balanced when control
// returns.
func (rt *Runtime) emitLog(rec *wire.LogRecord) error {
	frame, err := rec.Encode()
	if err != nil {
		return fmt.Errorf("emit log: %w", err)
	}
	if err := rt.out.Push(frame); err != nil {
		return fmt.Errorf("emit log: %w", err)
	}
	rt.surface.Outb(OutbLog, 0)
	if ge := rt.checkForHostError(); ge != nil {
		return ge
	}
	return nil
}

func wireLevel(l slog.Level) wire.LogLevel {
	switch {
	case l < slog.LevelDebug:
		return wire.LogTrace
	case l < slog.LevelInfo:
		return wire.LogDebug
	case l < slog.LevelWarn:
		return wire.LogInformation
	case l < slog.LevelError:
		return wire.LogWarning
	case l < slog.LevelError+4:
		return wire.LogError
	default:
		return wire.LogCritical
	}
}
