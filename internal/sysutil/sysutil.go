// Package sysutil holds small process-level helpers shared by the server
// entry point and the configuration loader: zerolog level plumbing and
// environment-string handling.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// levelNames maps accepted LOG_LEVEL values to zerolog levels. The empty
// string and unknown values fall back to info.
var levelNames = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"":        zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
	"panic":   zerolog.PanicLevel,
}

// SetLogLevel configures the global zerolog level from a LOG_LEVEL-style
// string (case-insensitive, surrounding whitespace ignored).
func SetLogLevel(lvl string) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(lvl))]; ok {
		zerolog.SetGlobalLevel(l)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// IsTruthy reports whether an environment flag such as SWAGGER_ENABLED or
// OTEL_ENABLED should be read as true. Accepted (case-insensitive):
// "1", "true", "yes", "y", "on".
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank after trimming,
// or "" when every value is. Used for configuration fallback chains.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
