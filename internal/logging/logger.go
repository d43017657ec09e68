// Package logging provides category-scoped structured logging for autodev,
// built on top of go.uber.org/zap. Categories map one-to-one onto the
// subsystems of the self-development control plane so a single log stream
// can be filtered per component without grepping message text.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies the subsystem emitting a log line.
type Category string

const (
	CategoryOrchestrator Category = "orchestrator"
	CategoryExecutor     Category = "executor"
	CategoryGatekeeper   Category = "gatekeeper"
	CategoryRollback     Category = "rollback"
	CategoryRouter       Category = "router"
	CategoryProvider     Category = "provider"
	CategoryConfig       Category = "config"
	CategoryCLI          Category = "cli"
	CategoryEventlog     Category = "eventlog"
	CategorySpecification Category = "specification"
)

var (
	mu      sync.RWMutex
	base    *zap.Logger
	loggers = make(map[Category]*zap.SugaredLogger)
	debug   bool
)

// Init configures the base zap logger. When debugMode is false the logger
// runs at Info level with stack traces only on Error and above, matching the teacher's
// debug_mode-gated verbosity switch.
func Init(debugMode bool) error {
	mu.Lock()
	defer mu.Unlock()

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if debugMode {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg.Development = true
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("logging: build zap logger: %w", err)
	}

	base = l
	debug = debugMode
	loggers = make(map[Category]*zap.SugaredLogger)
	return nil
}

func ensureBase() {
	mu.RLock()
	ok := base != nil
	mu.RUnlock()
	if ok {
		return
	}
	// Fallback: a sessionless binary (tests, one-off tools) still gets a
	// working logger pointed at stderr rather than panicking on first use.
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	mu.Lock()
	if base == nil {
		base = l
	}
	mu.Unlock()
}

// Get returns the sugared logger for a category, creating it on first use.
func Get(cat Category) *zap.SugaredLogger {
	ensureBase()

	mu.RLock()
	l, ok := loggers[cat]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok = loggers[cat]; ok {
		return l
	}
	l = base.With(zap.String("category", string(cat))).Sugar()
	loggers[cat] = l
	return l
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		_ = base.Sync()
	}
}

// IsDebug reports whether the logger is running in debug mode.
func IsDebug() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debug
}

// StartTimer begins timing an operation and returns a Timer whose Stop
// method logs elapsed duration at Debug level. Grounded on the teacher's
// logging.StartTimer pattern (internal/logging) for hot-path instrumentation.
type Timer struct {
	cat   Category
	label string
	start int64
}

// StartTimer records the current time as the start of label's operation.
func StartTimer(cat Category, label string) *Timer {
	return &Timer{cat: cat, label: label, start: time.Now().UnixNano()}
}

func (t *Timer) Stop() {
	if t == nil {
		return
	}
	elapsed := time.Duration(time.Now().UnixNano() - t.start)
	Get(t.cat).Debugf("%s completed in %s", t.label, elapsed)
}

// Fatal logs at Error level, flushes, and exits the process with status 1,
// mirroring the teacher's use of zap for CLI-fatal configuration errors.
func Fatal(cat Category, msg string, args ...interface{}) {
	ensureBase()
	Get(cat).Errorf(msg, args...)
	Sync()
	os.Exit(1)
}
