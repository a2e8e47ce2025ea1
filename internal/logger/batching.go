package logger

import (
	"fmt"
	"sync"
	"time"

	"go.ytsaurus.tech/library/go/core/log"
)

// BatchingLogger passes through the first Threshold occurrences of a message per interval and reports
// the rest as one summary line when the interval ends. Messages are keyed by level and text only,
// so callers put the variable parts into fields.
type BatchingLogger struct {
	log.Logger
	interval  time.Duration
	threshold int

	mu     sync.Mutex
	counts map[batchKey]int
	stop   chan struct{}
	once   sync.Once
}

type batchKey struct {
	level log.Level
	msg   string
}

func NewBatchingLogger(l log.Logger, interval time.Duration, threshold int) *BatchingLogger {
	if interval <= 0 {
		interval = time.Minute
	}
	if threshold <= 0 {
		threshold = 32
	}
	b := &BatchingLogger{
		Logger:    l,
		interval:  interval,
		threshold: threshold,
		counts:    map[batchKey]int{},
		stop:      make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *BatchingLogger) run() {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Flush()
		case <-b.stop:
			b.Flush()
			return
		}
	}
}

// Flush writes the summaries of the current interval and starts a new one.
func (b *BatchingLogger) Flush() {
	b.mu.Lock()
	counts := b.counts
	b.counts = map[batchKey]int{}
	b.mu.Unlock()
	for key, n := range counts {
		if suppressed := n - b.threshold; suppressed > 0 {
			b.write(key.level, fmt.Sprintf("got %d more messages: %s", suppressed, key.msg))
		}
	}
}

// Close stops the flush loop after a final flush.
func (b *BatchingLogger) Close() {
	b.once.Do(func() { close(b.stop) })
}

func (b *BatchingLogger) allow(level log.Level, msg string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := batchKey{level: level, msg: msg}
	b.counts[key]++
	return b.counts[key] <= b.threshold
}

func (b *BatchingLogger) write(level log.Level, msg string, fields ...log.Field) {
	switch level {
	case log.DebugLevel:
		b.Logger.Debug(msg, fields...)
	case log.InfoLevel:
		b.Logger.Info(msg, fields...)
	case log.WarnLevel:
		b.Logger.Warn(msg, fields...)
	default:
		b.Logger.Error(msg, fields...)
	}
}

func (b *BatchingLogger) Debug(msg string, fields ...log.Field) {
	if b.allow(log.DebugLevel, msg) {
		b.write(log.DebugLevel, msg, fields...)
	}
}

func (b *BatchingLogger) Info(msg string, fields ...log.Field) {
	if b.allow(log.InfoLevel, msg) {
		b.write(log.InfoLevel, msg, fields...)
	}
}

func (b *BatchingLogger) Warn(msg string, fields ...log.Field) {
	if b.allow(log.WarnLevel, msg) {
		b.write(log.WarnLevel, msg, fields...)
	}
}

func (b *BatchingLogger) Error(msg string, fields ...log.Field) {
	if b.allow(log.ErrorLevel, msg) {
		b.write(log.ErrorLevel, msg, fields...)
	}
}
