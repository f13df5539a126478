package union

import (
	"os"
	"testing"
)

func TestEngineCreateThenLookup(t *testing.T) {
	e, _, _ := newTestEngine(t)

	rwConcrete, err := e.Create("/", "new.txt", 0644, Root)
	if err != nil {
		t.Fatal(err)
	}
	if !e.Mount.sys.Exists(rwConcrete) {
		t.Fatal("created file missing from disk")
	}

	_, attr, err := e.Lookup("/", "new.txt", Root)
	if err != nil {
		t.Fatal(err)
	}
	if attr.Mode.IsDir() {
		t.Fatal("created file resolved as a directory")
	}
}

func TestEngineCreateFailsIfExists(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "a")

	if _, err := e.Create("/", "a.txt", 0644, Root); err == nil {
		t.Fatal("expected ErrExists for a name already visible via RO")
	}
}

func TestEngineMkdirMasksROContentsWhenShadowing(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeRODir(t, ro, "/d")
	writeROFile(t, ro, "/d/old.txt", "old")

	// Simulate a prior rmdir of the RO "/d": it hides the directory
	// itself with a whiteout, making it invisible to the resolver.
	if _, err := e.Whiteout.Create("/d"); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Mkdir("/", "d", 0755, Root); err != nil {
		t.Fatal(err)
	}

	if _, hidden, err := e.Whiteout.Find("/d/old.txt"); err != nil || !hidden {
		t.Fatalf("old RO child should be hidden under the new RW dir: hidden=%v, err=%v", hidden, err)
	}

	entries, err := e.Readdir("/d", Root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("new directory shadowing an RO one should start empty, got %v", entries)
	}
}

func TestEngineUnlinkRWOnlyRemovesOutright(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Create("/", "a.txt", 0644, Root); err != nil {
		t.Fatal(err)
	}
	if err := e.Unlink("/", "a.txt", Root); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Resolver.FindFile("/a.txt", 0, Root); err == nil {
		t.Fatal("file still resolves after unlink")
	}
}

func TestEngineUnlinkROVisibleCreatesWhiteout(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "a")

	if err := e.Unlink("/", "a.txt", Root); err != nil {
		t.Fatal(err)
	}
	if _, hidden, err := e.Whiteout.Find("/a.txt"); err != nil || !hidden {
		t.Fatalf("expected a whiteout after unlinking an RO-visible file: hidden=%v, err=%v", hidden, err)
	}
}

func TestEngineRmdirRequiresEmpty(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Mkdir("/", "d", 0755, Root); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Create("/d", "a.txt", 0644, Root); err != nil {
		t.Fatal(err)
	}
	if err := e.Rmdir("/", "d", Root); err == nil {
		t.Fatal("expected ErrNotEmpty")
	}
	if err := e.Unlink("/d", "a.txt", Root); err != nil {
		t.Fatal(err)
	}
	if err := e.Rmdir("/", "d", Root); err != nil {
		t.Fatalf("rmdir of now-empty dir failed: %v", err)
	}
}

func TestEngineOpenForWriteTriggersCopyup(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "ro-content")

	res, err := e.OpenForWrite("/a.txt", Root)
	if err != nil {
		t.Fatal(err)
	}
	if res.Branch != ReadWriteCopyup {
		t.Fatalf("Branch = %v, want ReadWriteCopyup", res.Branch)
	}
}

func TestEngineSetattrOnROGoesThroughME(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "ro-content")

	_, err := e.Setattr("/a.txt", Attr{Uid: 55, Gid: 55}, ChangeOwner, Root)
	if err != nil {
		t.Fatal(err)
	}

	rwConcrete, _ := e.Mount.t.makeRW("/a.txt")
	if e.Mount.sys.Exists(rwConcrete) {
		t.Fatal("setattr on an RO object must not copy it up")
	}

	_, attr, err := e.Getattr("/a.txt", Root)
	if err != nil {
		t.Fatal(err)
	}
	if attr.Uid != 55 {
		t.Fatalf("Uid = %d, want 55", attr.Uid)
	}
}

func TestEngineSymlinkAndLookup(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Symlink("/", "link", "/target", Root); err != nil {
		t.Fatal(err)
	}
	_, attr, err := e.Lookup("/", "link", Root)
	if err != nil {
		t.Fatal(err)
	}
	if attr.Mode&os.ModeSymlink == 0 {
		t.Fatal("expected symlink mode bit")
	}
}

func TestEngineLinkFallsBackToSymlinkForROSource(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "ro-content")

	if _, err := e.Link("/a.txt", "/", "b.txt", Root); err != nil {
		t.Fatal(err)
	}
	_, attr, err := e.Lookup("/", "b.txt", Root)
	if err != nil {
		t.Fatal(err)
	}
	if attr.Mode&os.ModeSymlink == 0 {
		t.Fatal("linking an RO source should fall back to a symlink")
	}
}

func TestEngineLinkHardLinksRWSource(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Create("/", "a.txt", 0644, Root); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Link("/a.txt", "/", "b.txt", Root); err != nil {
		t.Fatal(err)
	}
	_, attr, err := e.Lookup("/", "b.txt", Root)
	if err != nil {
		t.Fatal(err)
	}
	if attr.Mode&os.ModeSymlink != 0 {
		t.Fatal("linking an RW source should hard-link, not symlink")
	}
}
