package union

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestEngine builds an Engine over fresh RO/RW temp directories and
// returns it along with their concrete paths.
func newTestEngine(t *testing.T) (*Engine, string, string) {
	t.Helper()
	root := t.TempDir()
	ro := filepath.Join(root, "ro")
	rw := filepath.Join(root, "rw")
	for _, d := range []string{ro, rw} {
		if err := os.Mkdir(d, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	e, err := NewEngine(ro, rw, WithSeed(7))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, ro, rw
}

func writeROFile(t *testing.T, ro, logicalPath, content string) {
	t.Helper()
	full := filepath.Join(ro, filepath.FromSlash(logicalPath))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeRODir(t *testing.T, ro, logicalPath string) {
	t.Helper()
	full := filepath.Join(ro, filepath.FromSlash(logicalPath))
	if err := os.MkdirAll(full, 0755); err != nil {
		t.Fatal(err)
	}
}
