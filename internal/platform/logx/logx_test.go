// internal/platform/logx/logx_test.go
package logx

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	logger := New()
	if logger == nil {
		t.Fatal("New() should return a logger, got nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"dbg", LevelDebug},
		{"info", LevelInfo},
		{"inf", LevelInfo},
		{"", LevelInfo}, // empty defaults to Info
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"err", LevelError},
		{"ERROR", LevelError},
		{"  error  ", LevelError},
		{"garbage", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestKVPairs(t *testing.T) {
	tests := []struct {
		name     string
		input    []any
		expected []string
	}{
		{
			name:     "empty input",
			input:    []any{},
			expected: []string{},
		},
		{
			name:     "single pair",
			input:    []any{"key", "value"},
			expected: []string{"key=value"},
		},
		{
			name:     "odd number of elements",
			input:    []any{"key1", "value1", "key2"},
			expected: []string{"key1=value1", "key2=(missing)"},
		},
		{
			name:     "mixed types",
			input:    []any{"scan", 7, "enabled", true},
			expected: []string{"scan=7", "enabled=true"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := kvPairs(tt.input...)

			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d pairs, got %d", len(tt.expected), len(result))
			}

			for i, exp := range tt.expected {
				if result[i] != exp {
					t.Errorf("pair %d: expected %q, got %q", i, exp, result[i])
				}
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name string
		log  func(Logger)
		tag  string
		want string
	}{
		{"debug", func(l Logger) { l.Debug("debug message", "key", "value") }, "DBG", "key=value"},
		{"info", func(l Logger) { l.Info("info message", "count", 42) }, "INF", "count=42"},
		{"warn", func(l Logger) { l.Warn("warning message", "enabled", true) }, "WRN", "enabled=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := &simpleLogger{
				lvl: LevelDebug,
				lg:  log.New(&buf, "", 0),
			}

			tt.log(logger)

			output := buf.String()
			if !strings.Contains(output, tt.tag) {
				t.Errorf("output should contain %q, got: %s", tt.tag, output)
			}
			if !strings.Contains(output, tt.want) {
				t.Errorf("output should contain kv pair %q, got: %s", tt.want, output)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := &simpleLogger{
		lvl: LevelDebug,
		lg:  log.New(&buf, "", 0),
	}

	scoped := logger.With("scan_id", 3, "tool", "subfinder")
	scoped.Info("tool starting")

	output := buf.String()
	if !strings.Contains(output, "scan_id=3") {
		t.Errorf("output should contain 'scan_id=3', got: %s", output)
	}
	if !strings.Contains(output, "tool=subfinder") {
		t.Errorf("output should contain 'tool=subfinder', got: %s", output)
	}
	if !strings.Contains(output, "tool starting") {
		t.Errorf("output should contain message, got: %s", output)
	}
}

func TestLogger_With_Immutable(t *testing.T) {
	var buf1, buf2 bytes.Buffer

	logger := &simpleLogger{
		lvl: LevelDebug,
		lg:  log.New(&buf1, "", 0),
	}

	scoped := logger.With("component", "prober")

	if len(logger.scope) != 0 {
		t.Errorf("original logger should not have scope, got: %v", logger.scope)
	}

	scopedImpl := scoped.(*simpleLogger)
	if len(scopedImpl.scope) != 1 {
		t.Errorf("scoped logger should have 1 scope pair, got: %d", len(scopedImpl.scope))
	}

	scopedImpl.lg = log.New(&buf2, "", 0)

	logger.Info("original")
	scoped.Info("scoped")

	if strings.Contains(buf1.String(), "component=prober") {
		t.Errorf("original logger output should not contain scope: %s", buf1.String())
	}
	if !strings.Contains(buf2.String(), "component=prober") {
		t.Errorf("scoped logger output should contain scope: %s", buf2.String())
	}
}

func TestLogger_Err(t *testing.T) {
	var buf bytes.Buffer
	logger := &simpleLogger{
		lvl: LevelError,
		lg:  log.New(&buf, "", 0),
	}

	testErr := errors.New("connection refused")
	logger.Err(testErr, "source", "database")

	output := buf.String()
	if !strings.Contains(output, "ERR") {
		t.Errorf("output should contain 'ERR', got: %s", output)
	}
	if !strings.Contains(output, "error=connection refused") {
		t.Errorf("output should contain error, got: %s", output)
	}
	if !strings.Contains(output, "source=database") {
		t.Errorf("output should contain kv pair, got: %s", output)
	}
	// Err con solo campos no debe dejar doble espacio
	if strings.Contains(output, "  ") {
		t.Errorf("output should not contain double spaces: %s", output)
	}
}

func TestLogger_Err_Nil(t *testing.T) {
	var buf bytes.Buffer
	logger := &simpleLogger{
		lvl: LevelError,
		lg:  log.New(&buf, "", 0),
	}

	logger.Err(nil, "source", "database")

	if buf.String() != "" {
		t.Errorf("nil error should not log anything, got: %s", buf.String())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name         string
		logLevel     Level
		shouldAppear map[string]bool
	}{
		{
			name:     "debug level - all appear",
			logLevel: LevelDebug,
			shouldAppear: map[string]bool{
				"DBG": true, "INF": true, "WRN": true, "ERR": true,
			},
		},
		{
			name:     "info level - no debug",
			logLevel: LevelInfo,
			shouldAppear: map[string]bool{
				"DBG": false, "INF": true, "WRN": true, "ERR": true,
			},
		},
		{
			name:     "warn level - only warn and error",
			logLevel: LevelWarn,
			shouldAppear: map[string]bool{
				"DBG": false, "INF": false, "WRN": true, "ERR": true,
			},
		},
		{
			name:     "error level - only error",
			logLevel: LevelError,
			shouldAppear: map[string]bool{
				"DBG": false, "INF": false, "WRN": false, "ERR": true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := &simpleLogger{
				lvl: tt.logLevel,
				lg:  log.New(&buf, "", 0),
			}

			logger.Debug("debug")
			logger.Info("info")
			logger.Warn("warn")
			logger.Err(errors.New("error"))

			output := buf.String()

			for tag, shouldAppear := range tt.shouldAppear {
				contains := strings.Contains(output, tag)
				if contains != shouldAppear {
					t.Errorf("tag %s: appear=%v at level %v, got: %s", tag, shouldAppear, tt.logLevel, output)
				}
			}
		})
	}
}

func TestLogger_ThreadSafety(t *testing.T) {
	var buf bytes.Buffer
	logger := &simpleLogger{
		lvl: LevelInfo,
		lg:  log.New(&buf, "", 0),
	}

	var wg sync.WaitGroup
	iterations := 100

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				logger.Info("concurrent log", "id", id, "iteration", j)
			}
		}(i)
	}

	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	expectedLines := 10 * iterations

	if len(lines) != expectedLines {
		t.Errorf("expected %d log lines, got %d", expectedLines, len(lines))
	}
}

func TestNew_WithEnv(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		logLevel Level
	}{
		{"debug level from env", "debug", LevelDebug},
		{"warn level from env", "warn", LevelWarn},
		{"error level from env", "error", LevelError},
		{"empty defaults to info", "", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("SUBSENTRY_LOG_LEVEL", tt.envValue)
			defer os.Unsetenv("SUBSENTRY_LOG_LEVEL")

			logger := New()
			impl := logger.(*simpleLogger)

			if impl.lvl != tt.logLevel {
				t.Errorf("expected log level %v, got %v", tt.logLevel, impl.lvl)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelInfo)

	logger.Info("child process log", "tool", "alterx")

	output := buf.String()
	if !strings.Contains(output, "child process log") {
		t.Errorf("output should contain message, got: %s", output)
	}
	if !strings.Contains(output, "tool=alterx") {
		t.Errorf("output should contain kv pair, got: %s", output)
	}
}
