// Package logging builds the zerolog logger shared by the client, the
// daemon and the control API.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for file output.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// LogBuild collects logger options before Make.
type LogBuild struct {
	writer  io.Writer
	path    string
	level   string
	console bool
}

// LogData is a built logger and the file behind it, if any.
type LogData struct {
	Logger zerolog.Logger
	file   io.Closer
}

// New starts a builder that writes JSON to stderr at info level.
func New() *LogBuild {
	return &LogBuild{level: "info"}
}

// FromPath writes to a size-rotated file instead of the writer.
func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

// FromWriter writes to w.
func (build *LogBuild) FromWriter(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// Level sets the minimum level: debug, info, warn or error.
func (build *LogBuild) Level(level string) *LogBuild {
	build.level = level
	return build
}

// Console renders human-friendly lines instead of JSON. Ignored for files.
func (build *LogBuild) Console(on bool) *LogBuild {
	build.console = on
	return build
}

// Make builds the logger.
func (build *LogBuild) Make() (*LogData, error) {
	data := &LogData{}

	var w io.Writer = os.Stderr
	if build.writer != nil {
		w = build.writer
	}

	if build.path != "" {
		if err := os.MkdirAll(filepath.Dir(build.path), 0755); err != nil {
			return nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   build.path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		}
		data.file = rotator
		w = zerolog.SyncWriter(rotator)
	} else if build.console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	data.Logger = zerolog.New(w).Level(ParseLevel(build.level)).With().Timestamp().Logger()
	return data, nil
}

// Close releases the log file, if one was opened.
func (d *LogData) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}

// ParseLevel maps a config level name to a zerolog level. Unknown names
// mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
