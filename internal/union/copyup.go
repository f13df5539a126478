package union

import (
	"io"
	"os"
	"path"
	"strings"
	"time"
)

// copyBufSize is the fixed buffer size for regular-file copy-up.
// Sequential buffered reads/writes give better kernel read-ahead and
// lazy-write behavior than mmap for large files.
const copyBufSize = 4096

// CopyUpEngine implements COW (spec.md §4.5): materializing an RO object
// onto RW so its data can be mutated, and the reverse (unlink-copyup).
type CopyUpEngine struct {
	m  *Mount
	me *MetaEngine
}

func newCopyUpEngine(m *Mount, me *MetaEngine) *CopyUpEngine {
	return &CopyUpEngine{m: m, me: me}
}

// FindPath ensures every intermediate directory along logicalPath exists
// on RW, copying real directory attributes (atime/mtime/uid/gid — never
// an ME, these are genuine RW directory attrs) from the RO source of
// truth, and returns logicalPath's RW-concrete path.
func (e *CopyUpEngine) FindPath(logicalPath string) (string, error) {
	parentDir, leaf := splitParent(logicalPath)
	if parentDir == "" {
		return e.m.t.makeRW(logicalPath)
	}

	parentRW, err := e.m.t.makeRW(parentDir)
	if err != nil {
		return "", err
	}
	if e.m.sys.Exists(parentRW) {
		return e.m.t.makeRW(logicalPath)
	}

	var built strings.Builder
	built.WriteString(e.m.rwRoot)

	segs := strings.Split(strings.TrimPrefix(parentDir, "/"), "/")
	logicalSoFar := ""
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		logicalSoFar += "/" + seg
		built.WriteString("/" + seg)
		rwPath := built.String()

		if e.m.sys.Exists(rwPath) {
			continue
		}

		roPath, err := e.m.t.makeRO(logicalSoFar)
		if err != nil {
			return "", err
		}
		attr, err := e.m.sys.Lstat(roPath)
		if err != nil {
			return "", err
		}

		if err := e.m.sys.Mkdir(rwPath, attr.Mode.Perm()); err != nil {
			return "", err
		}
		if err := e.m.sys.NotifyChange(rwPath, attr, ChangeOwner|ChangeTime); err != nil {
			e.m.sys.Rmdir(rwPath)
			return "", err
		}
	}

	return e.m.t.makeRW(logicalPath)
}

// CreateCopyup materializes the RO object at logicalPath onto RW,
// recursively for directories, consuming any pre-existing ME sidecar
// (invariant I3: ME exists only for RO objects, and copy-up consumes
// it).
func (e *CopyUpEngine) CreateCopyup(logicalPath string) (rwConcrete string, err error) {
	start := monotonicNow()
	defer func() { e.m.metrics.copyUpSeconds.Observe(time.Since(start).Seconds()) }()

	roConcrete, err := e.m.t.makeRO(logicalPath)
	if err != nil {
		return "", err
	}

	attr, err := e.me.GetMerged(logicalPath, roConcrete, ReadOnly)
	if err != nil {
		return "", err
	}

	rwConcrete, err = e.FindPath(logicalPath)
	if err != nil {
		return "", err
	}

	if err := e.materialize(logicalPath, roConcrete, rwConcrete, attr); err != nil {
		return "", err
	}

	if err := e.me.Remove(logicalPath); err != nil {
		return "", err
	}

	e.m.metrics.copyUps.Inc()
	return rwConcrete, nil
}

func (e *CopyUpEngine) materialize(logicalPath, roConcrete, rwConcrete string, attr Attr) error {
	// A symlink has no mode of its own to chmod: Fchmodat with flags 0
	// follows the link and would chmod whatever it points at instead,
	// reaching back onto the RO branch's target. Owner/time changes are
	// already symlink-safe (Lchown, UtimesNanoAt with
	// AT_SYMLINK_NOFOLLOW), so only the mode dimension is skipped.
	notifyFlags := ChangeAll
	switch {
	case attr.Mode.IsRegular():
		if err := e.copyRegular(roConcrete, rwConcrete, attr); err != nil {
			return err
		}
	case attr.Mode&os.ModeSymlink != 0:
		target, err := e.m.sys.Readlink(roConcrete)
		if err != nil {
			return err
		}
		if err := e.m.sys.Symlink(target, rwConcrete); err != nil {
			return err
		}
		notifyFlags = ChangeOwner | ChangeTime
	case attr.Mode&os.ModeNamedPipe != 0:
		if err := e.m.sys.Mknod(rwConcrete, os.ModeNamedPipe|attr.Mode.Perm(), 0); err != nil {
			return err
		}
	case attr.Mode&(os.ModeDevice|os.ModeSocket) != 0:
		if err := e.m.sys.Mknod(rwConcrete, attr.Mode, attr.Rdev); err != nil {
			return err
		}
	case attr.Mode.IsDir():
		return e.copyDir(logicalPath, roConcrete, rwConcrete, attr)
	default:
		return wrap(ErrInvalid, "create_copyup", logicalPath)
	}

	if err := e.m.sys.NotifyChange(rwConcrete, attr, notifyFlags); err != nil {
		e.m.sys.Unlink(rwConcrete)
		return err
	}
	return nil
}

func (e *CopyUpEngine) copyRegular(roConcrete, rwConcrete string, attr Attr) (err error) {
	src, err := e.m.sys.Open(roConcrete, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := e.m.sys.Open(rwConcrete, os.O_CREATE|os.O_WRONLY|os.O_EXCL, attr.Mode.Perm())
	if err != nil {
		return err
	}

	// The anonymous wrappers hide *os.File's ReaderFrom/WriterTo so the
	// copy really goes through buf instead of copy_file_range/sendfile.
	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(struct{ io.Writer }{dst}, struct{ io.Reader }{src}, buf); err != nil {
		dst.Close()
		e.m.sys.Unlink(rwConcrete)
		return err
	}
	return dst.Close()
}

func (e *CopyUpEngine) copyDir(logicalPath, roConcrete, rwConcrete string, attr Attr) error {
	if err := e.m.sys.Mkdir(rwConcrete, attr.Mode.Perm()); err != nil {
		return err
	}

	names, err := e.m.sys.ReadDirNames(roConcrete)
	if err != nil {
		e.m.sys.Rmdir(rwConcrete)
		return err
	}

	for _, name := range names {
		if isSpecial(name) || isMe(name) || isWhiteout(name) {
			continue
		}
		childLogical := path.Join(logicalPath, name)
		if _, err := e.CreateCopyup(childLogical); err != nil {
			removeAll(e.m.sys, rwConcrete)
			return err
		}
	}

	if err := e.m.sys.NotifyChange(rwConcrete, attr, ChangeAll); err != nil {
		removeAll(e.m.sys, rwConcrete)
		return err
	}
	return nil
}

// removeAll best-effort removes a partially-built RW directory after a
// failed recursive copy-up (spec.md I4).
func removeAll(sys fsys, rwConcrete string) {
	names, err := sys.ReadDirNames(rwConcrete)
	if err == nil {
		for _, name := range names {
			if isSpecial(name) {
				continue
			}
			child := rwConcrete + "/" + name
			if attr, err := sys.Lstat(child); err == nil && attr.Mode.IsDir() {
				removeAll(sys, child)
				continue
			}
			sys.Unlink(child)
		}
	}
	sys.Rmdir(rwConcrete)
}

// UnlinkCopyup reverses a copy-up: it captures the copy-up's current
// attributes, unlinks it, and, if the RO twin still exists, re-creates
// an ME from the captured attrs so the user-visible attributes don't
// regress to the RO original (invariant I6).
func (e *CopyUpEngine) UnlinkCopyup(logicalPath, rwConcrete string) error {
	captured, err := e.m.sys.Lstat(rwConcrete)
	if err != nil {
		return err
	}

	if err := e.m.sys.Unlink(rwConcrete); err != nil {
		return err
	}

	roConcrete, err := e.m.t.makeRO(logicalPath)
	if err != nil {
		return err
	}
	if !e.m.sys.Exists(roConcrete) {
		return nil
	}

	roAttr, err := e.m.sys.Lstat(roConcrete)
	if err != nil {
		return err
	}
	return e.me.Set(logicalPath, roAttr, captured, ChangeAll)
}

// monotonicNow exists so metrics timing doesn't depend on wall-clock
// edge cases; time.Since already uses the monotonic reading Go attaches
// to time.Now, so this is just a named call site for clarity.
func monotonicNow() time.Time { return time.Now() }
