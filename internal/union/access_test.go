package union

import (
	"os"
	"testing"
)

func TestGrantedOwnerPermissions(t *testing.T) {
	attr := Attr{Mode: 0640, Uid: 100, Gid: 200}
	owner := Caller{Uid: 100, Gid: 200}
	other := Caller{Uid: 999, Gid: 999}

	if !granted(attr, owner, Read) {
		t.Fatal("owner should have read access under 0640")
	}
	if !granted(attr, owner, Write) {
		t.Fatal("owner should have write access under 0640")
	}
	if granted(attr, other, Read) {
		t.Fatal("other should not have read access under 0640")
	}
}

func TestGrantedGroupPermissions(t *testing.T) {
	attr := Attr{Mode: 0640, Uid: 100, Gid: 200}
	groupMember := Caller{Uid: 5, Gid: 200}
	if !granted(attr, groupMember, Read) {
		t.Fatal("group member should have read access under 0640")
	}
	if granted(attr, groupMember, Write) {
		t.Fatal("group should not have write access under 0640")
	}
}

func TestGrantedRootBypassesPermissionsExceptExec(t *testing.T) {
	attr := Attr{Mode: 0600, Uid: 100, Gid: 200}
	if !granted(attr, Root, Read) || !granted(attr, Root, Write) {
		t.Fatal("root should always get read/write")
	}
	if granted(attr, Root, Exec) {
		t.Fatal("root exec still requires an exec bit somewhere in mode")
	}
	attr.Mode = 0700
	if !granted(attr, Root, Exec) {
		t.Fatal("root exec should succeed once any exec bit is set")
	}
}

func TestCanTraverseRootAlwaysAllowed(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Access.CanTraverse("/a/b/c", Root); err != nil {
		t.Fatalf("root traversal should never be denied: %v", err)
	}
}

func TestCanTraverseDeniedWithoutExecOnAncestor(t *testing.T) {
	e, ro, _ := newTestEngine(t)
	writeRODir(t, ro, "/d")
	roConcrete, _ := e.Mount.t.makeRO("/d")
	if err := os.Chmod(roConcrete, 0600); err != nil {
		t.Fatal(err)
	}
	caller := Caller{Uid: 1000, Gid: 1000}
	if err := e.Access.CanTraverse("/d/child", caller); err == nil {
		t.Fatal("expected traversal to be denied without exec bit on ancestor")
	}
}

func TestCanTraverseAllowsRWOnlyAncestorWithoutROTwin(t *testing.T) {
	e, _, rw := newTestEngine(t)
	if err := os.MkdirAll(rw+"/a", 0755); err != nil {
		t.Fatal(err)
	}
	// 0755 grants exec to "other", so any caller not matching the
	// creating process's uid/gid still traverses via the RW-concrete
	// fallback rather than failing on the absent RO twin.
	caller := Caller{Uid: 999999, Gid: 999999}
	if err := e.Access.CanTraverse("/a/child", caller); err != nil {
		t.Fatalf("traversal of RW-only ancestor with no RO twin should fall back to RW attrs, got: %v", err)
	}
}

func TestCanRemoveRejectsUnionRoot(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if err := e.Access.CanRemove("/", "", ReadWrite, Root); err == nil {
		t.Fatal("expected removing the union root to be denied")
	}
}
