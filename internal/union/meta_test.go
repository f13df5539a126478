package union

import (
	"testing"
	"time"
)

func TestMetaEngineGetMergedNoSidecar(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "hello")

	roConcrete, err := e.Mount.t.makeRO("/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	attr, err := e.Meta.GetMerged("/a.txt", roConcrete, ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	if attr.Size != 5 {
		t.Fatalf("Size = %d, want 5", attr.Size)
	}
}

func TestMetaEngineSetCreatesBaselineSnapshot(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "hello")

	roConcrete, err := e.Mount.t.makeRO("/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	concreteAttr, err := e.Mount.sys.Lstat(roConcrete)
	if err != nil {
		t.Fatal(err)
	}

	newTime := time.Unix(1600000000, 0)
	newAttr := Attr{Uid: 42, Gid: 43, Mode: 0600, Atime: newTime, Mtime: newTime, Ctime: newTime}
	if err := e.Meta.Set("/a.txt", concreteAttr, newAttr, ChangeOwner); err != nil {
		t.Fatal(err)
	}

	merged, err := e.Meta.GetMerged("/a.txt", roConcrete, ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Uid != 42 || merged.Gid != 43 {
		t.Fatalf("merged owner = %d:%d, want 42:43", merged.Uid, merged.Gid)
	}
	// MODE wasn't in flags, so it must still reflect the concrete
	// baseline permission bits, not newAttr.Mode.
	if merged.Mode.Perm() != concreteAttr.Mode.Perm() {
		t.Fatalf("merged mode = %v, want baseline %v", merged.Mode.Perm(), concreteAttr.Mode.Perm())
	}
}

func TestMetaEngineSetUpdateDoesNotClobberUntouchedDimension(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "hello")
	roConcrete, _ := e.Mount.t.makeRO("/a.txt")
	concreteAttr, _ := e.Mount.sys.Lstat(roConcrete)

	if err := e.Meta.Set("/a.txt", concreteAttr, Attr{Uid: 1, Gid: 1}, ChangeOwner); err != nil {
		t.Fatal(err)
	}
	if err := e.Meta.Set("/a.txt", concreteAttr, Attr{Mode: 0600}, ChangeMode); err != nil {
		t.Fatal(err)
	}

	merged, err := e.Meta.GetMerged("/a.txt", roConcrete, ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Uid != 1 || merged.Gid != 1 {
		t.Fatalf("owner was clobbered by a later MODE-only update: %d:%d", merged.Uid, merged.Gid)
	}
	if merged.Mode.Perm() != 0600 {
		t.Fatalf("mode = %v, want 0600", merged.Mode.Perm())
	}
}

func TestMetaEngineRemoveNonexistentIsNotError(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Meta.Remove("/nope.txt"); err != nil {
		t.Fatalf("Remove of nonexistent ME returned error: %v", err)
	}
}

func TestMetaEngineFindRoundTrip(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeROFile(t, ro, "/a.txt", "hello")
	roConcrete, _ := e.Mount.t.makeRO("/a.txt")
	concreteAttr, _ := e.Mount.sys.Lstat(roConcrete)

	if err := e.Meta.Set("/a.txt", concreteAttr, Attr{Uid: 9}, ChangeOwner); err != nil {
		t.Fatal(err)
	}
	_, attr, ok, err := e.Meta.Find("/a.txt")
	if err != nil || !ok {
		t.Fatalf("Find = ok=%v, err=%v", ok, err)
	}
	if attr.Uid != 9 {
		t.Fatalf("found sidecar attr.Uid = %d, want 9", attr.Uid)
	}

	if err := e.Meta.Remove("/a.txt"); err != nil {
		t.Fatal(err)
	}
	if _, _, ok, err := e.Meta.Find("/a.txt"); err != nil || ok {
		t.Fatalf("sidecar still found after Remove: ok=%v, err=%v", ok, err)
	}
}
