package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "toolguard dev") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("version: \"1\"\nmoderation:\n  threshold: 40\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("version: \"1\"\nmoderation:\n  threshold: 400\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "config", "validate", good)
	if err != nil {
		t.Fatalf("validate good: %v", err)
	}
	if !strings.Contains(out, "Configuration OK") || !strings.Contains(out, "threshold=40") {
		t.Errorf("output = %q", out)
	}

	if _, err := run(t, "", "config", "validate", bad); err == nil || !strings.Contains(err.Error(), "threshold") {
		t.Errorf("validate bad = %v", err)
	}
}

func TestClassify_Disabled(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "toolguard.yaml")
	if err := os.WriteFile(cfg, []byte("version: \"1\"\nmoderation:\n  enabled: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := run(t, "some tool output", "--config", cfg, "classify")
	if err == nil || !strings.Contains(err.Error(), "moderation is disabled") {
		t.Errorf("classify = %v, want disabled error", err)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	if _, err := parseLevel("debug"); err != nil {
		t.Errorf("debug: %v", err)
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
