package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/paths"
)

const testRunID = "20250115-101500"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"empty defaults to INFO", "", slog.LevelInfo},
		{"DEBUG lowercase", "debug", slog.LevelDebug},
		{"INFO uppercase", "INFO", slog.LevelInfo},
		{"WARN lowercase", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"ERROR uppercase", "ERROR", slog.LevelError},
		{"invalid defaults to INFO", "loud", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewRunID(t *testing.T) {
	got := NewRunID(time.Date(2025, 1, 15, 10, 15, 0, 0, time.UTC))
	if got != testRunID {
		t.Errorf("NewRunID() = %q, want %q", got, testRunID)
	}
	if !runIDPattern.MatchString(got) {
		t.Errorf("NewRunID() = %q does not satisfy the run ID pattern", got)
	}
}

func TestInit_RejectsUnsafeRunID(t *testing.T) {
	for _, id := range []string{"", "../escape", "a/b"} {
		if err := Init(id); err == nil {
			t.Errorf("Init(%q) expected error", id)
			Close()
		}
	}
}

func TestInit_WritesJSONLogsUnderGitDir(t *testing.T) {
	tmpDir := t.TempDir()
	initGitRepo(t, tmpDir)
	t.Cleanup(resetLogger)

	if err := Init(testRunID); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx := WithComponent(context.Background(), "planner")
	Info(ctx, "test message", slog.String("key", "value"))
	Close()

	logFile := filepath.Join(tmpDir, ".git", paths.StateDirName, paths.LogsDirName, testRunID+".log")
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v\nContent: %s", err, content)
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["run_id"] != testRunID {
		t.Errorf("run_id = %v, want %q", entry["run_id"], testRunID)
	}
	if entry["component"] != "planner" {
		t.Errorf("component = %v, want %q", entry["component"], "planner")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

func TestInit_RespectsLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	initGitRepo(t, tmpDir)
	t.Cleanup(resetLogger)
	t.Setenv(LogLevelEnvVar, "WARN")

	if err := Init(testRunID); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	ctx := context.Background()
	Debug(ctx, "debug message")
	Info(ctx, "info message")
	Warn(ctx, "warn message")
	Close()

	content, err := os.ReadFile(filepath.Join(tmpDir, ".git", paths.StateDirName, paths.LogsDirName, testRunID+".log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %s", len(lines), content)
	}
	if !strings.Contains(lines[0], "warn message") {
		t.Errorf("expected warn message, got %s", lines[0])
	}
}

func TestLog_ContextAttributes(t *testing.T) {
	t.Cleanup(resetLogger)

	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelDebug)

	ctx := WithRun(context.Background(), "run-1")
	ctx = WithBranch(ctx, "feature")
	Debug(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want run-1", entry["run_id"])
	}
	if entry["branch"] != "feature" {
		t.Errorf("branch = %v, want feature", entry["branch"])
	}
}

func TestLogDuration(t *testing.T) {
	t.Cleanup(resetLogger)

	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)

	LogDuration(context.Background(), slog.LevelInfo, "done", time.Now().Add(-25*time.Millisecond))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	ms, ok := entry["duration_ms"].(float64)
	if !ok || ms < 25 {
		t.Errorf("duration_ms = %v, want >= 25", entry["duration_ms"])
	}
}

func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	t.Chdir(dir)
	paths.ClearRepoRootCache()
	//nolint:noctx // test code
	cmd := exec.Command("git", "init")
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to init git repo: %v\nOutput: %s", err, output)
	}
}
