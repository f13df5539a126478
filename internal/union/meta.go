package union

import "os"

// MetaEngine implements the ME sidecar mechanism (spec.md §4.3): an RO
// object's owner/mode/times can be mutated by writing a sidecar file
// while its data payload is untouched.
type MetaEngine struct {
	m *Mount
}

func newMetaEngine(m *Mount) *MetaEngine { return &MetaEngine{m: m} }

// GetMerged stats concrete and, when branch is ReadOnly, overlays any
// existing ME sidecar's uid/gid/atime/mtime/ctime and permission-mode
// bits onto the result. The concrete stat's file-type bits always win,
// since an ME file is a regular file and its type bits are meaningless
// for the logical object (spec.md §4.3 WHY).
func (e *MetaEngine) GetMerged(logicalPath, concrete string, branch Branch) (Attr, error) {
	base, err := e.m.sys.Lstat(concrete)
	if err != nil {
		return Attr{}, err
	}
	if branch != ReadOnly {
		return base, nil
	}

	e.m.metrics.meReads.Inc()
	_, meAttr, ok, err := e.find(logicalPath)
	if err != nil {
		return Attr{}, err
	}
	if !ok {
		return base, nil
	}

	merged := base
	merged.Uid = meAttr.Uid
	merged.Gid = meAttr.Gid
	merged.Atime = meAttr.Atime
	merged.Mtime = meAttr.Mtime
	merged.Ctime = meAttr.Ctime
	merged.Mode = overlayMode(base.Mode, meAttr.Mode)
	return merged, nil
}

// find computes P's ME sidecar path and stats it, returning ok=false if
// no sidecar exists.
func (e *MetaEngine) find(logicalPath string) (sidecarPath string, attr Attr, ok bool, err error) {
	sidecarPath, err = e.m.t.toSidecar(logicalPath, SidecarME)
	if err != nil {
		return "", Attr{}, false, err
	}
	attr, err = e.m.sys.Lstat(sidecarPath)
	if err != nil {
		if os.IsNotExist(err) {
			return sidecarPath, Attr{}, false, nil
		}
		return "", Attr{}, false, err
	}
	return sidecarPath, attr, true, nil
}

// Set creates or updates P's ME sidecar.
//
// Contract: callers must not invoke Set on an RW-concrete object; ME
// exists only for RO objects (invariant I3). Callers are responsible for
// resolving P to ReadOnly first.
//
// If no ME exists, one is created as a full baseline snapshot: any
// dimension not present in flags is populated from concreteAttr so the
// ME always describes every attribute, not just the ones just changed.
// If an ME exists, only the requested subset of (OWNER, MODE, TIME) is
// applied, so an update never clobbers a previously-set dimension it
// wasn't asked to touch.
func (e *MetaEngine) Set(logicalPath string, concreteAttr, newAttr Attr, flags ChangeFlags) error {
	e.m.metrics.meWrites.Inc()
	sidecarPath, existing, ok, err := e.find(logicalPath)
	if err != nil {
		return err
	}

	if !ok {
		full := concreteAttr
		if flags&ChangeOwner != 0 {
			full.Uid, full.Gid = newAttr.Uid, newAttr.Gid
		}
		if flags&ChangeMode != 0 {
			full.Mode = overlayMode(concreteAttr.Mode, newAttr.Mode)
		} else {
			full.Mode = overlayMode(concreteAttr.Mode, concreteAttr.Mode)
		}
		if flags&ChangeTime != 0 {
			full.Atime, full.Mtime, full.Ctime = newAttr.Atime, newAttr.Mtime, newAttr.Ctime
		}
		return e.create(sidecarPath, full)
	}

	merged := existing
	if flags&ChangeOwner != 0 {
		merged.Uid, merged.Gid = newAttr.Uid, newAttr.Gid
	}
	if flags&ChangeMode != 0 {
		merged.Mode = overlayMode(existing.Mode, newAttr.Mode)
	}
	if flags&ChangeTime != 0 {
		merged.Atime, merged.Mtime, merged.Ctime = newAttr.Atime, newAttr.Mtime, newAttr.Ctime
	}
	return e.m.sys.NotifyChange(sidecarPath, merged, ChangeAll)
}

// create makes a new, empty ME sidecar file and applies attr's five
// attribute dimensions to it.
func (e *MetaEngine) create(sidecarPath string, attr Attr) error {
	mode := attr.Mode & ValidModesMask
	f, err := e.m.sys.Open(sidecarPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	f.Close()

	if err := e.m.sys.NotifyChange(sidecarPath, attr, ChangeAll); err != nil {
		e.m.sys.Unlink(sidecarPath)
		return err
	}
	return nil
}

// Find returns P's ME sidecar path and attributes, or ok=false if none
// exists.
func (e *MetaEngine) Find(logicalPath string) (sidecarPath string, attr Attr, ok bool, err error) {
	return e.find(logicalPath)
}

// Remove unlinks P's ME sidecar if one exists. It is not an error for
// none to exist.
func (e *MetaEngine) Remove(logicalPath string) error {
	sidecarPath, err := e.m.t.toSidecar(logicalPath, SidecarME)
	if err != nil {
		return err
	}
	err = e.m.sys.Unlink(sidecarPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
