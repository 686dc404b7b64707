// Package observability provides structured logging for the advisor.
package observability

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging configures the global logger based on the provided settings.
func SetupLogging(level, format string, output io.Writer) {
	// Parse log level
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	// Configure time format
	zerolog.TimeFieldFormat = time.RFC3339

	// Set output format
	if format == "console" || format == "text" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	// Set global logger
	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()
}

// Logger returns a contextualized logger for a component.
func Logger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Event types for structured logging
const (
	EventTurnHandled       = "turn_handled"
	EventClassified        = "classified"
	EventClassifierRemote  = "classifier_remote_fallback"
	EventPrecedentNotFound = "precedent_not_found"
	EventRetrievalFallback = "retrieval_fallback"
	EventSynthesisFallback = "synthesis_fallback"
	EventSessionCreated    = "session_created"
	EventSessionEvicted    = "session_evicted"
	EventMessageAppendFail = "message_append_failed"
	EventIndexRebuilt      = "index_rebuilt"
	EventDaemonStarted     = "daemon_started"
	EventDaemonStopped     = "daemon_stopped"
	EventHealthCheck       = "health_check"
)

// LogEvent logs a structured event.
func LogEvent(logger zerolog.Logger, event string, fields map[string]interface{}) {
	e := logger.Info().Str("event", event)
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg("")
}
