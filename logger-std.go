//go:build !tinygo

package sx126x

import (
	"log/slog"
)

func init() {
	globalLogger = &slogLogger{}
}

// slogLogger forwards driver messages to the default slog logger, so the
// host application decides on level, format and destination.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l as a driver Logger. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) logger() *slog.Logger {
	if s.l != nil {
		return s.l
	}
	return slog.Default()
}

func (s *slogLogger) Debug(msg string) { s.logger().Debug(msg, "component", "sx126x") }
func (s *slogLogger) Info(msg string)  { s.logger().Info(msg, "component", "sx126x") }
func (s *slogLogger) Warn(msg string)  { s.logger().Warn(msg, "component", "sx126x") }
func (s *slogLogger) Error(msg string) { s.logger().Error(msg, "component", "sx126x") }
