package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrRestrictedPath is returned for paths under /proc, /sys or /dev.
var ErrRestrictedPath = errors.New("access to restricted path is not allowed")

// ErrPathEscape is returned when a path resolves outside its root.
var ErrPathEscape = errors.New("path escapes workspace root")

// ValidatePath rejects paths that reach /proc, /sys or /dev. The path is
// made absolute and symlinks are resolved (best-effort) before checking.
func ValidatePath(path string) error {
	cleaned := resolve(path)
	normalized := strings.ToLower(cleaned)

	for _, prefix := range []string{"/proc/", "/sys/", "/dev/"} {
		if strings.HasPrefix(normalized+"/", prefix) {
			return fmt.Errorf("%w: %s", ErrRestrictedPath, path)
		}
	}
	return nil
}

// ConfinePath joins name onto root and returns the absolute result. It
// fails with ErrPathEscape when the result, after resolving symlinks, is not
// root itself or inside it.
func ConfinePath(root, name string) (string, error) {
	rootAbs := resolve(root)

	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(rootAbs, target)
	}
	resolved := resolve(target)

	rel, err := filepath.Rel(rootAbs, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, name)
	}
	if err := ValidatePath(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

func resolve(path string) string {
	cleaned := filepath.Clean(path)
	if abs, err := filepath.Abs(cleaned); err == nil {
		cleaned = abs
	}
	if r, err := filepath.EvalSymlinks(cleaned); err == nil {
		cleaned = r
	}
	return cleaned
}
