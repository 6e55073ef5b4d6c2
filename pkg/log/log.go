// Package log provides structured logging for prepflow on top of zerolog.
//
// Pipelines log through a shared logger configured once at startup. The
// attribute key constants keep field names consistent across components so
// that a dataset id or model id can be traced through fit, transform,
// train and explain calls.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Attribute keys shared across pipelines.
const (
	OperationKey  = "operation"
	DatasetIDKey  = "dataset_id"
	CleanerIDKey  = "cleaner_id"
	ModelIDKey    = "model_id"
	ModelTypeKey  = "model_type"
	RowsKey       = "rows"
	ColsKey       = "cols"
	FeaturesKey   = "features"
	DurationMsKey = "duration_ms"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Setup configures the global logger with the given level and output.
// Unknown level strings fall back to info.
func Setup(level string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	defer mu.Unlock()
	logger = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// L returns the shared logger.
func L() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns a logger pre-populated with a component name.
func With(component string) zerolog.Logger {
	return L().With().Str("component", component).Logger()
}
