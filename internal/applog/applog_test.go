package applog

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/schlitzer/pylogchop/internal/config"
)

// TestLevelFor_MapsEveryConfiguredName verifies every level name the
// schema accepts maps to a sane zapcore threshold, and an unknown name
// degrades to Info rather than panicking.
func TestLevelFor_MapsEveryConfiguredName(t *testing.T) {
	testCases := []struct {
		name string
		want zapcore.Level
	}{
		{"DEBUG", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"WARNING", zapcore.WarnLevel},
		{"ERROR", zapcore.ErrorLevel},
		{"CRITICAL", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"NOT_A_LEVEL", zapcore.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := levelFor(tc.name); got != tc.want {
				t.Errorf("levelFor(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

// TestBuild_NilTargetUsesDefault verifies Build never errors when no
// [*:logging] section is configured.
func TestBuild_NilTargetUsesDefault(t *testing.T) {
	log, err := Build(nil)
	if err != nil {
		t.Fatalf("Build(nil) error: %v", err)
	}
	if log == nil {
		t.Fatal("Build(nil) returned a nil logger")
	}
}

// TestBuild_FileTarget verifies the file-logging branch builds a
// logger writing through lumberjack without error.
func TestBuild_FileTarget(t *testing.T) {
	dir := t.TempDir()
	target := &config.AppLogTarget{
		File: &config.FileLogging{
			File:      filepath.Join(dir, "app.log"),
			Retention: 7,
			Level:     "DEBUG",
		},
	}

	log, err := Build(target)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	log.Infow("test message")
}
