package logging

import (
	"testing"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(42), "unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.expected)
		}
	}
}

func TestGetLevelDefault(t *testing.T) {
	// The level is latched on first use via sync.Once, so this test can only
	// verify that GetLevel returns a valid level for the current process.
	level := GetLevel()
	if level < LevelDebug || level > LevelError {
		t.Errorf("GetLevel() returned out-of-range level %d", level)
	}

	if IsDebugEnabled() != (level <= LevelDebug) {
		t.Error("IsDebugEnabled() disagrees with GetLevel()")
	}
}

func TestParseLevelValues(t *testing.T) {
	// initLevel is guarded by sync.Once, so the parsing logic is exercised
	// directly rather than through the environment.
	tests := []struct {
		value    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"garbage", LevelInfo},
	}

	for _, tt := range tests {
		got := parseLevel(tt.value)
		if got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.value, got, tt.expected)
		}
	}
}
