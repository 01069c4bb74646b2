package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

const defaultRecorderLines = 500

// Recorder keeps the most recent formatted log lines in memory.
type Recorder struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = defaultRecorderLines
	}
	return &Recorder{lines: make([]string, size)}
}

// Core returns a zap core writing console-encoded entries into r.
func (r *Recorder) Core(encCfg zapcore.EncoderConfig, level zapcore.LevelEnabler) zapcore.Core {
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(r), level)
}

// Write stores each non-empty line of p.
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		r.lines[r.next] = line
		r.next = (r.next + 1) % len(r.lines)
		if r.next == 0 {
			r.full = true
		}
	}
	return len(p), nil
}

// Tail returns up to n of the newest lines, oldest first.
func (r *Recorder) Tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.full {
		count = len(r.lines)
	}
	if n <= 0 || n > count {
		n = count
	}

	out := make([]string, 0, n)
	start := r.next - n
	for i := 0; i < n; i++ {
		idx := (start + i + len(r.lines)) % len(r.lines)
		out = append(out, r.lines[idx])
	}
	return out
}
