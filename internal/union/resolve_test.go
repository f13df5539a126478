package union

import "testing"

func TestFindFilePrefersRWOverRO(t *testing.T) {
	e, ro, rw := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "ro-version")
	writeROFile(t, rw, "/a.txt", "rw-version")

	res, err := e.Resolver.FindFile("/a.txt", 0, Root)
	if err != nil {
		t.Fatal(err)
	}
	if res.Branch != ReadWrite {
		t.Fatalf("Branch = %v, want ReadWrite", res.Branch)
	}
}

func TestFindFileFallsBackToRO(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "ro-version")

	res, err := e.Resolver.FindFile("/a.txt", 0, Root)
	if err != nil {
		t.Fatal(err)
	}
	if res.Branch != ReadOnly {
		t.Fatalf("Branch = %v, want ReadOnly", res.Branch)
	}
}

func TestFindFileNotFound(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.Resolver.FindFile("/missing.txt", 0, Root); err == nil {
		t.Fatal("expected ErrNotFound")
	}
}

func TestFindFileRespectsWhiteout(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "ro-version")
	if _, err := e.Whiteout.Create("/a.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Resolver.FindFile("/a.txt", 0, Root); err == nil {
		t.Fatal("expected whited-out RO entry to resolve as not found")
	}
}

func TestFindFileCreateCopyupFlagMaterializes(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "ro-version")

	res, err := e.Resolver.FindFile("/a.txt", CreateCopyupFlag, Root)
	if err != nil {
		t.Fatal(err)
	}
	if res.Branch != ReadWriteCopyup {
		t.Fatalf("Branch = %v, want ReadWriteCopyup", res.Branch)
	}
	if !e.Mount.sys.Exists(res.Concrete) {
		t.Fatal("copy-up did not materialize a concrete RW file")
	}
}

func TestFindFileMustReadWriteFailsWhenRWOnlyMissing(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "ro-version")

	if _, err := e.Resolver.FindFile("/a.txt", MustReadWrite, Root); err == nil {
		t.Fatal("expected MustReadWrite to fail for an RO-only path")
	}
}
