package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	MaxLogDirSize = 10 * 1024 * 1024 // 10MB
	LogFileName   = "autopilot-manager.log"
)

var (
	mu          sync.Mutex
	root        *zap.SugaredLogger
	logFile     *os.File
	logDir      string
	stopCleanup chan struct{}
	initialized bool
)

// Init sets up the process logger: a human-readable console core on stderr and a
// JSON file core under dir. Debug enables debug-level output on both cores.
// Calling Init twice is a no-op.
func Init(dir string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = file
		logDir = dir

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.Lock(file), level))

		stopCleanup = make(chan struct{})
		go cleanupLoop(stopCleanup)
	}

	root = zap.New(zapcore.NewTee(cores...)).Sugar()
	initialized = true

	root.Infof("Logger initialized")
	return nil
}

// Close flushes and releases the logger. Safe to call when Init was never run.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return
	}
	if stopCleanup != nil {
		close(stopCleanup)
		stopCleanup = nil
	}
	_ = root.Sync()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	root = nil
	initialized = false
}

// Named returns a component-scoped logger, e.g. Named("detector").
// Falls back to a console-only logger when Init was not called (tests, CLI).
func Named(component string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		l, _ := zap.NewDevelopment()
		return l.Sugar().Named(component)
	}
	return root.Named(component)
}

func get() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		l, _ := zap.NewDevelopment(zap.AddCallerSkip(1))
		return l.Sugar()
	}
	return root
}

// Info logs an info message.
func Info(format string, args ...interface{}) {
	get().Infof(format, args...)
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// Debug logs a debug message.
func Debug(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

// cleanupLoop keeps the log directory under MaxLogDirSize. The current log file is
// never removed; older archives go first.
func cleanupLoop(stop chan struct{}) {
	checkAndClean()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			checkAndClean()
		}
	}
}

func checkAndClean() {
	mu.Lock()
	dir := logDir
	mu.Unlock()
	if dir == "" {
		return
	}

	size, err := dirSize(dir)
	if err != nil || size <= MaxLogDirSize {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == LogFileName {
			continue
		}
		os.Remove(filepath.Join(dir, entry.Name()))
	}
}

func dirSize(dir string) (int64, error) {
	var size int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, nil
}
