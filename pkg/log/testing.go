package log

import (
	"bytes"
	"encoding/json"
	"sync"
)

// CaptureWriter collects log lines in memory for assertions in tests.
type CaptureWriter struct {
	mu    sync.Mutex
	lines [][]byte
}

// NewCaptureWriter creates an empty CaptureWriter.
func NewCaptureWriter() *CaptureWriter {
	return &CaptureWriter{}
}

// Write stores one log line.
func (c *CaptureWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := make([]byte, len(p))
	copy(line, p)
	c.lines = append(c.lines, line)
	return len(p), nil
}

// Entries decodes every captured line as a JSON object.
// Lines that are not valid JSON are skipped.
func (c *CaptureWriter) Entries() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.lines))
	for _, line := range c.lines {
		var m map[string]interface{}
		if err := json.Unmarshal(bytes.TrimSpace(line), &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Contains reports whether any captured entry has the given key/value pair.
func (c *CaptureWriter) Contains(key string, value interface{}) bool {
	for _, e := range c.Entries() {
		if v, ok := e[key]; ok && v == value {
			return true
		}
	}
	return false
}
