package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePath(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"/proc/self/environ", "/sys/kernel", "/dev/mem", "/proc"} {
		if err := ValidatePath(p); !errors.Is(err, ErrRestrictedPath) {
			t.Errorf("ValidatePath(%q) = %v, want ErrRestrictedPath", p, err)
		}
	}
	if err := ValidatePath(t.TempDir()); err != nil {
		t.Errorf("temp dir rejected: %v", err)
	}
}

func TestConfinePath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "a.md"), []byte("a"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ConfinePath(root, "docs/a.md")
	if err != nil {
		t.Fatalf("ConfinePath: %v", err)
	}
	if filepath.Base(got) != "a.md" {
		t.Errorf("got %q", got)
	}

	for _, name := range []string{"../outside.txt", "docs/../../etc/passwd", "/etc/passwd"} {
		if _, err := ConfinePath(root, name); !errors.Is(err, ErrPathEscape) {
			t.Errorf("ConfinePath(%q) = %v, want ErrPathEscape", name, err)
		}
	}
}

func TestConfinePath_Symlink(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret"), []byte("s"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := ConfinePath(root, "link/secret"); !errors.Is(err, ErrPathEscape) {
		t.Errorf("symlink escape: error = %v, want ErrPathEscape", err)
	}
}
