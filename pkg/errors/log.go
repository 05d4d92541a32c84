package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// LogHandler is an ErrorHandler that writes structured events to a zerolog
// logger.
type LogHandler struct {
	logger zerolog.Logger
	// Verbose attaches stack traces to every event.
	Verbose bool
}

// NewLogHandler returns a LogHandler writing to logger.
func NewLogHandler(logger zerolog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With().Str("component", "errors").Logger()}
}

func nopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// HandleError logs a WeaveError.
func (h *LogHandler) HandleError(err *WeaveError) {
	if err == nil {
		return
	}
	ev := h.logger.Error().Err(err.Err).Str("op", err.Op).Stringer("kind", err.Kind)
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("runtime error")
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	ev := h.logger.Error().Interface("value", err.Value)
	if err.Op != "" {
		ev = ev.Str("op", err.Op)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("panic")
}

// HandleBuildError logs a BuildError.
func (h *LogHandler) HandleBuildError(err *BuildError) {
	if err == nil {
		return
	}
	ev := h.logger.Error().Str("widget", err.Widget)
	if err.Err != nil {
		ev = ev.Err(err.Err)
	}
	if err.Recovered != nil {
		ev = ev.Interface("recovered", err.Recovered)
	}
	if h.Verbose && err.StackTrace != "" {
		ev = ev.Str("stack", err.StackTrace)
	}
	ev.Msg("build failed")
}
