package log

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes a rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int // rotate after this many megabytes, 0 means 100
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// SetFileOutput sends the package-wide logger to a rotating file. Closing the
// returned writer restores stderr output.
func SetFileOutput(cfg FileConfig) io.Closer {
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	SetOutput(w)
	return &fileOutput{w: w}
}

type fileOutput struct {
	w *lumberjack.Logger
}

func (f *fileOutput) Close() error {
	SetOutput(os.Stderr)
	return f.w.Close()
}
