package union

import "path"

// AccessMode is the POSIX permission subset requested of can_access.
type AccessMode uint8

const (
	Read AccessMode = 1 << iota
	Write
	Exec
)

// Caller identifies the uid/gid of the request driving an operation.
// Threaded explicitly through every call rather than stashed in mount
// state, so concurrent operations from different callers never race on
// a shared "current caller" field.
type Caller struct {
	Uid uint32
	Gid uint32
}

// Root is the superuser caller identity.
var Root = Caller{Uid: 0, Gid: 0}

// AccessGate implements spec.md §4.7: permission checks against unioned
// attributes.
type AccessGate struct {
	m  *Mount
	me *MetaEngine
}

func newAccessGate(m *Mount, me *MetaEngine) *AccessGate {
	return &AccessGate{m: m, me: me}
}

// CanAccess checks caller's requested mode against the merged attributes
// of (logicalPath, concrete, branch).
func (g *AccessGate) CanAccess(logicalPath, concrete string, branch Branch, caller Caller, mode AccessMode) error {
	attr, err := g.me.GetMerged(logicalPath, concrete, branch)
	if err != nil {
		return err
	}
	if !granted(attr, caller, mode) {
		return wrap(ErrPermission, "access", logicalPath)
	}
	return nil
}

func granted(attr Attr, caller Caller, mode AccessMode) bool {
	if caller.Uid == 0 {
		if mode&Exec != 0 {
			return attr.Mode.Perm()&0111 != 0
		}
		return true
	}

	perm := attr.Mode.Perm()
	var shift uint
	switch {
	case caller.Uid == attr.Uid:
		shift = 6
	case caller.Gid == attr.Gid:
		shift = 3
	default:
		shift = 0
	}

	var want uint8
	if mode&Read != 0 {
		want |= 4
	}
	if mode&Write != 0 {
		want |= 2
	}
	if mode&Exec != 0 {
		want |= 1
	}

	bits := uint8(perm>>shift) & 0b111
	return bits&want == want
}

// CanRemove requires WRITE on the parent directory of logicalPath.
// Removing the union root itself is always denied.
func (g *AccessGate) CanRemove(logicalPath, parentConcrete string, parentBranch Branch, caller Caller) error {
	if logicalPath == "/" || logicalPath == "" {
		return wrap(ErrPermission, "remove", logicalPath)
	}
	parent := path.Dir(logicalPath)
	return g.CanAccess(parent, parentConcrete, parentBranch, caller, Write)
}

// CanTraverse walks every ancestor directory component of logicalPath
// and requires EXEC on each, against RO ancestor attributes merged with
// any ME override when the ancestor has an RO twin, falling back to the
// RW-concrete ancestor attributes when it doesn't (an RW-only directory,
// e.g. one created with Mkdir, has no RO twin to stat at all).
func (g *AccessGate) CanTraverse(logicalPath string, caller Caller) error {
	if caller.Uid == 0 {
		return nil
	}

	dir := path.Dir(logicalPath)
	if dir == "." {
		dir = "/"
	}

	var ancestors []string
	for dir != "/" && dir != "." {
		ancestors = append(ancestors, dir)
		dir = path.Dir(dir)
	}

	for i := len(ancestors) - 1; i >= 0; i-- {
		anc := ancestors[i]
		roConcrete, err := g.m.t.makeRO(anc)
		if err != nil {
			return err
		}
		if g.m.sys.Exists(roConcrete) {
			if err := g.CanAccess(anc, roConcrete, ReadOnly, caller, Exec); err != nil {
				return err
			}
			continue
		}
		rwConcrete, err := g.m.t.makeRW(anc)
		if err != nil {
			return err
		}
		if err := g.CanAccess(anc, rwConcrete, ReadWrite, caller, Exec); err != nil {
			return err
		}
	}
	return nil
}
