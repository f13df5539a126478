package union

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestMount(t *testing.T) (*Mount, string, string) {
	t.Helper()
	root := t.TempDir()
	ro := filepath.Join(root, "ro")
	rw := filepath.Join(root, "rw")
	for _, d := range []string{ro, rw} {
		if err := os.Mkdir(d, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	m, err := NewMount(ro, rw, WithSeed(1))
	if err != nil {
		t.Fatalf("NewMount: %v", err)
	}
	return m, ro, rw
}

func TestNewMountRejectsTrailingSlash(t *testing.T) {
	root := t.TempDir()
	ro := filepath.Join(root, "ro") + "/"
	if err := os.MkdirAll(ro, 0755); err != nil {
		t.Fatal(err)
	}
	rw := filepath.Join(root, "rw")
	if err := os.Mkdir(rw, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMount(ro, rw); err == nil {
		t.Fatal("expected error for trailing-slash root")
	}
}

func TestNewMountRejectsNestedRoots(t *testing.T) {
	root := t.TempDir()
	ro := filepath.Join(root, "base")
	rw := filepath.Join(root, "base", "rw")
	if err := os.MkdirAll(rw, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMount(ro, rw); err == nil {
		t.Fatal("expected error: rw is nested inside ro")
	}
}

func TestNewMountRejectsNonDir(t *testing.T) {
	root := t.TempDir()
	ro := filepath.Join(root, "ro")
	if err := os.Mkdir(ro, 0755); err != nil {
		t.Fatal(err)
	}
	rwFile := filepath.Join(root, "rwfile")
	if err := os.WriteFile(rwFile, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewMount(ro, rwFile); err == nil {
		t.Fatal("expected error: rw root is not a directory")
	}
}

func TestMountSeedPinnedIsDeterministic(t *testing.T) {
	m1, ro, rw := newTestMount(t)
	m2, err := NewMount(ro, rw, WithSeed(1))
	if err != nil {
		t.Fatal(err)
	}
	if m1.Magic() != m2.Magic() {
		t.Fatalf("same seed+roots produced different magics: %d != %d", m1.Magic(), m2.Magic())
	}
}

func TestNameToInoViaMount(t *testing.T) {
	m, _, _ := newTestMount(t)
	if m.NameToIno("/a") == m.NameToIno("/b") {
		t.Fatal("distinct logical paths collided")
	}
}
