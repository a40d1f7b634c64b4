package log

import (
	"log/slog"
	"os"
)

// SetupLogger installs a JSON slog default logger for programs that log through
// log/slog directly. Errors passed with ErrAttr get a stacktrace attribute.
// Unknown level strings fall back to info.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{Key: "severity", Value: attr.Value}
			case slog.MessageKey:
				attr = slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))

	if lv, ok := ParseLevel(loglevel); ok {
		SetLevel(lv)
	}
}

// ToLogLevel converts a level string into a slog.Level.
func ToLogLevel(level string) slog.Level {
	lv, _ := ParseLevel(level)
	return slog.Level(lv)
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
