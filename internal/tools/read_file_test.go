package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/toolguard/internal/tool"
)

func readCall(path string) tool.Call {
	args, _ := json.Marshal(map[string]string{"path": path})
	return tool.Call{ID: "call-1", Arguments: args}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello from the workspace"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte(strings.Repeat("x", 64)), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "blob.bin"), []byte{0, 0, 1}, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o700); err != nil {
		t.Fatal(err)
	}

	rf := ReadFile(ReadFileConfig{Root: root, MaxSize: 16})

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "relative", path: "notes.txt", want: "hello from the w"},
		{name: "truncated", path: "big.txt", want: "file truncated"},
		{name: "escape", path: "../outside.txt", want: "escapes workspace root", wantErr: true},
		{name: "absolute outside", path: "/etc/hostname", want: "escapes workspace root", wantErr: true},
		{name: "missing", path: "nope.txt", want: "file not found", wantErr: true},
		{name: "directory", path: "sub", want: "is a directory", wantErr: true},
		{name: "binary", path: "blob.bin", want: "binary", wantErr: true},
		{name: "empty path", path: "", want: "path is required", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := rf.Execute(context.Background(), readCall(tt.path), nil)
			if err != nil {
				t.Fatalf("Execute() error: %v", err)
			}
			text, _ := tool.ExtractText(res)
			if res.IsError != tt.wantErr {
				t.Errorf("IsError = %v, want %v (%q)", res.IsError, tt.wantErr, text)
			}
			if !strings.Contains(text, tt.want) {
				t.Errorf("text = %q, want substring %q", text, tt.want)
			}
		})
	}
}

func TestBuiltin(t *testing.T) {
	t.Parallel()

	if got := Builtin(Config{}); len(got) != 0 {
		t.Errorf("Builtin(empty) = %d tools, want 0", len(got))
	}

	got := Builtin(Config{Workspace: t.TempDir(), WebFetch: &WebFetchConfig{}})
	names := make([]string, 0, len(got))
	for _, tl := range got {
		if !tl.Executable() {
			t.Errorf("%s is not executable", tl.Name)
		}
		names = append(names, tl.Name)
	}
	if strings.Join(names, ",") != "web_fetch,read_file" {
		t.Errorf("names = %v", names)
	}
}
