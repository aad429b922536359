// Package logger builds the leveled logger used by the phoned server and
// the phonedata CLI. The lookup engine itself never logs.
package logger

import (
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

const header = "${time_rfc3339} ${level} ${short_file}:${line} -"

// New returns a logger with the given prefix at the named level
// (debug, info, warn, error or off; anything else means info).
func New(prefix, level string) *log.Logger {
	l := log.New(prefix)
	l.SetLevel(ParseLevel(level))
	l.SetHeader(header)
	return l
}

// Discard returns a logger that writes nothing, for tests.
func Discard() *log.Logger {
	l := log.New("discard")
	l.SetOutput(io.Discard)
	l.SetLevel(log.OFF)
	return l
}

// ParseLevel converts a level name to a gommon level.
func ParseLevel(level string) log.Lvl {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return log.DEBUG
	case "WARN":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	default:
		return log.INFO
	}
}
