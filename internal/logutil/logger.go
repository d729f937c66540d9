// Package logutil builds the process logger.
package logutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// New returns a logger that writes JSON to file, or to stderr when file is
// empty. The returned func closes the file.
//
// The level parameter can be one of: trace, debug, info, warn, error, fatal.
func New(level, file string) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	var w io.Writer = os.Stderr
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}
		closer = func() { _ = f.Close() }
		w = f
	}

	l := zerolog.New(w).
		With().
		Timestamp().
		Str("service", "sitebook").
		Logger().
		Level(lvl)

	return l, closer, nil
}
