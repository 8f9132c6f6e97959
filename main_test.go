package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseArgs_Selector(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "flag", args: []string{"-request_type", "teams"}, want: "teams"},
		{name: "positional", args: []string{"competitions_standings"}, want: "competitions_standings"},
		{name: "all", args: []string{"all"}, want: selectorAll},
		{name: "flag wins", args: []string{"-request_type", "teams", "competitions"}, want: "teams"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseArgs(tt.args, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("parseArgs: %v", err)
			}
			if opts.selector != tt.want {
				t.Errorf("selector = %q, want %q", opts.selector, tt.want)
			}
		})
	}
}

func TestParseArgs_InvalidSelectorListsValidOnes(t *testing.T) {
	_, err := parseArgs([]string{"-request_type", "players"}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for unknown selector")
	}
	for _, name := range []string{"competitions", "teams", "matches_today", "teams_upcoming_matches"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not list %s", err, name)
		}
	}
}

func TestRun_InvalidSelectorHasNoSideEffects(t *testing.T) {
	dir := t.TempDir()
	runLog := filepath.Join(dir, "state", "runs.db")
	t.Setenv("RUN_LOG_PATH", runLog)

	var stdout, stderr bytes.Buffer
	code := run([]string{"bogus"}, &stdout, &stderr)
	if code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
	if !strings.Contains(stderr.String(), "invalid request type") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "state")); !os.IsNotExist(err) {
		t.Errorf("run history directory was created before the selector was checked")
	}
}

func TestRun_NoSelector(t *testing.T) {
	t.Setenv("SCHEDULE_CRON", "")
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != exitUsage {
		t.Fatalf("exit code = %d, want %d", code, exitUsage)
	}
}

func TestRun_HistoryOnEmptyStore(t *testing.T) {
	t.Setenv("RUN_LOG_PATH", filepath.Join(t.TempDir(), "runs.db"))
	t.Setenv("LOG_FORMAT", "json")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-history", "5"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "STARTED") {
		t.Errorf("stdout = %q", stdout.String())
	}
}
