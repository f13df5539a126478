package union

import "testing"

func TestTranslatorMakeROMakeRW(t *testing.T) {
	tr := newTranslator("/ro", "/rw")

	ro, err := tr.makeRO("/a/b")
	if err != nil || ro != "/ro/a/b" {
		t.Fatalf("makeRO = %q, %v", ro, err)
	}
	rw, err := tr.makeRW("/a/b")
	if err != nil || rw != "/rw/a/b" {
		t.Fatalf("makeRW = %q, %v", rw, err)
	}
}

func TestTranslatorNameTooLong(t *testing.T) {
	tr := newTranslator("/ro", "/rw")
	long := make([]byte, MaxPathLen)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := tr.makeRO("/" + string(long)); err == nil {
		t.Fatal("expected ErrNameTooLong")
	}
}

func TestToSidecar(t *testing.T) {
	tr := newTranslator("/ro", "/rw")

	me, err := tr.toSidecar("/a/b/file.txt", SidecarME)
	if err != nil || me != "/rw/a/b/.me.file.txt" {
		t.Fatalf("toSidecar(ME) = %q, %v", me, err)
	}

	wh, err := tr.toSidecar("/file.txt", SidecarWH)
	if err != nil || wh != "/rw/.wh.file.txt" {
		t.Fatalf("toSidecar(WH) at root = %q, %v", wh, err)
	}
}

func TestToSidecarRejectsRootlessPath(t *testing.T) {
	tr := newTranslator("/ro", "/rw")
	if _, err := tr.toSidecar("noslash", SidecarME); err == nil {
		t.Fatal("expected error for path without '/'")
	}
}

func TestIsMeIsWhiteout(t *testing.T) {
	if !isMe(".me.foo") || isMe(".me.") || isMe("foo") {
		t.Fatal("isMe misclassified a name")
	}
	if !isWhiteout(".wh.foo") || isWhiteout(".wh.") || isWhiteout("foo") {
		t.Fatal("isWhiteout misclassified a name")
	}
}

func TestSplitParent(t *testing.T) {
	cases := []struct {
		in       string
		dir, leaf string
	}{
		{"/a/b", "/a", "b"},
		{"/a", "/", "a"},
		{"a", "", "a"},
	}
	for _, c := range cases {
		dir, leaf := splitParent(c.in)
		if dir != c.dir || leaf != c.leaf {
			t.Errorf("splitParent(%q) = (%q, %q), want (%q, %q)", c.in, dir, leaf, c.dir, c.leaf)
		}
	}
}
