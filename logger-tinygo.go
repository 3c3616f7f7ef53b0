//go:build tinygo

package sx126x

import (
	"machine"
)

func init() {
	globalLogger = &serialLogger{quiet: true}
}

// serialLogger writes "sx126x LEVEL msg" lines to machine.Serial without
// going through fmt. Debug lines carry every SPI frame and are dropped
// while quiet is set.
type serialLogger struct {
	quiet bool
}

// NewSerialLogger returns a Logger on machine.Serial. With verbose set the
// per-frame Debug trace is printed too.
func NewSerialLogger(verbose bool) Logger {
	return &serialLogger{quiet: !verbose}
}

func (l *serialLogger) write(tag, msg string) {
	machine.Serial.Write([]byte("sx126x " + tag + " " + msg + "\r\n"))
}

func (l *serialLogger) Debug(msg string) {
	if !l.quiet {
		l.write("DBG", msg)
	}
}

func (l *serialLogger) Info(msg string)  { l.write("INF", msg) }
func (l *serialLogger) Warn(msg string)  { l.write("WRN", msg) }
func (l *serialLogger) Error(msg string) { l.write("ERR", msg) }
