// Package logs configures logrus for the CLI and the interactive UIs.
package logs

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RingSize bounds the number of lines kept for the debug panel.
const RingSize = 200

// Options selects level and destination.
type Options struct {
	Level string
	// File receives log output; empty means Output.
	File   string
	Output io.Writer
	JSON   bool
}

// Setup builds a logger plus the ring mirroring its entries. The returned
// close func releases the log file, if any.
func Setup(opts Options) (*logrus.Logger, *Ring, func() error, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(orDefault(opts.Level, "info"))))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if opts.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: opts.File != ""})
	}

	closer := func() error { return nil }
	switch {
	case opts.File != "":
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		logger.SetOutput(f)
		closer = f.Close
	case opts.Output != nil:
		logger.SetOutput(opts.Output)
	default:
		logger.SetOutput(os.Stderr)
	}

	ring := NewRing(RingSize)
	logger.AddHook(ring)
	return logger, ring, closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Ring is a logrus hook keeping the last entries as short lines.
type Ring struct {
	mu    sync.Mutex
	lines []string
	size  int
	next  int
	full  bool
}

// NewRing returns a ring holding at most size lines.
func NewRing(size int) *Ring {
	if size < 1 {
		size = 1
	}
	return &Ring{lines: make([]string, size), size: size}
}

func (r *Ring) Levels() []logrus.Level { return logrus.AllLevels }

func (r *Ring) Fire(e *logrus.Entry) error {
	r.Add(formatLine(e.Time, e.Level, e.Message, e.Data))
	return nil
}

// Add appends a line, dropping the oldest when full.
func (r *Ring) Add(line string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % r.size
	if r.next == 0 {
		r.full = true
	}
}

// Lines returns the kept lines, oldest first.
func (r *Ring) Lines() []string {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}
	out := make([]string, 0, r.size)
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}

func formatLine(t time.Time, level logrus.Level, msg string, data logrus.Fields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", t.Format("15:04:05"), strings.ToUpper(level.String()), msg)
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, data[k])
	}
	return b.String()
}
