package sx126x

// Logger defines the logging interface for simple string messages.
// Plain strings keep binary size and allocations down under TinyGo,
// where pulling in fmt is expensive.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

var globalLogger Logger = &nopLogger{}

// SetLogger sets the global logger instance.
// Passing nil silences the driver.
func SetLogger(l Logger) {
	if l == nil {
		globalLogger = &nopLogger{}
		return
	}
	globalLogger = l
}

type nopLogger struct{}

func (l *nopLogger) Debug(msg string) {}
func (l *nopLogger) Info(msg string)  {}
func (l *nopLogger) Warn(msg string)  {}
func (l *nopLogger) Error(msg string) {}

const hexDigits = "0123456789ABCDEF"

// hexFrame renders a byte frame as "[0E] [00] [50]" without fmt,
// matching the per-byte trace the radio bring-up relies on.
func hexFrame(b []byte) string {
	out := make([]byte, 0, len(b)*5)
	for i, v := range b {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, '[', hexDigits[v>>4], hexDigits[v&0x0F], ']')
	}
	return string(out)
}
