package union

import (
	"errors"
	"os"
	"path"
)

// ops.go is the public surface a VFS host is expected to drive: it
// composes Resolver, AccessGate, MetaEngine, WhiteoutEngine and
// CopyUpEngine into the operation table from spec.md §6, so the FUSE
// adapter layer never touches a component directly. Every operation
// that mutates the union (create, mkdir, unlink, setattr, ...) runs
// its whole body inside a single Elevated block, matching the
// single-acquisition reentrancy elevate.go documents: the nested COW/
// ME/WH calls it makes never acquire the lock themselves.

// Lookup resolves a child name under a known-resolved parent directory.
func (e *Engine) Lookup(parentLogical, name string, caller Caller) (Result, Attr, error) {
	return e.Getattr(path.Join(parentLogical, name), caller)
}

// Getattr resolves logicalPath and returns its merged attributes.
func (e *Engine) Getattr(logicalPath string, caller Caller) (Result, Attr, error) {
	res, err := e.Resolver.FindFile(logicalPath, 0, caller)
	if err != nil {
		return Result{}, Attr{}, err
	}
	attr, err := e.Meta.GetMerged(logicalPath, res.Concrete, res.Branch)
	if err != nil {
		return Result{}, Attr{}, err
	}
	return res, attr, nil
}

// Setattr applies an attribute change. An RO-resolved object always goes
// through the ME Engine (invariant I3: never mutate an RO object's
// concrete inode); an RW-resolved object is changed directly.
func (e *Engine) Setattr(logicalPath string, newAttr Attr, flags ChangeFlags, caller Caller) (Attr, error) {
	var result Attr
	err := e.Mount.elev.Elevated(func() error {
		res, err := e.Resolver.FindFile(logicalPath, 0, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(logicalPath, res.Concrete, res.Branch, caller, Write); err != nil {
			return err
		}

		if res.Branch == ReadOnly {
			concreteAttr, err := e.Mount.sys.Lstat(res.Concrete)
			if err != nil {
				return err
			}
			if err := e.Meta.Set(logicalPath, concreteAttr, newAttr, flags); err != nil {
				return err
			}
		} else {
			if err := e.Mount.sys.NotifyChange(res.Concrete, newAttr, flags); err != nil {
				return err
			}
		}

		result, err = e.Meta.GetMerged(logicalPath, res.Concrete, res.Branch)
		return err
	})
	return result, err
}

// ensureWritable resolves logicalPath requiring a write-capable branch,
// copying up from RO when necessary. Callers must already hold the
// elevation lock.
func (e *Engine) ensureWritable(logicalPath string, caller Caller) (Result, error) {
	return e.Resolver.FindFile(logicalPath, CreateCopyupFlag, caller)
}

// Create implements the create() operation: a new regular file under
// dir/name. Fails with ErrExists if the name is already visible in the
// union (spec.md I1/I2).
func (e *Engine) Create(dirLogical, name string, mode os.FileMode, caller Caller) (string, error) {
	logicalPath := path.Join(dirLogical, name)
	var rwConcrete string
	err := e.Mount.elev.Elevated(func() error {
		if _, err := e.Resolver.FindFile(logicalPath, 0, caller); err == nil {
			return wrap(ErrExists, "create", logicalPath)
		}

		dirRes, err := e.ensureWritable(dirLogical, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(dirLogical, dirRes.Concrete, dirRes.Branch, caller, Write); err != nil {
			return err
		}

		concrete, err := e.CopyUp.FindPath(logicalPath)
		if err != nil {
			return err
		}
		f, err := e.Mount.sys.Open(concrete, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
		if err != nil {
			return err
		}
		f.Close()

		if err := e.Mount.sys.NotifyChange(concrete, Attr{Uid: caller.Uid, Gid: caller.Gid}, ChangeOwner); err != nil {
			e.Mount.sys.Unlink(concrete)
			return err
		}

		if _, wasWhited, err := e.Whiteout.Find(logicalPath); err == nil && wasWhited {
			e.Whiteout.Remove(logicalPath)
		}
		rwConcrete = concrete
		return nil
	})
	return rwConcrete, err
}

// Mkdir implements mkdir(). If an RO directory of the same name exists
// in a lower position, the new RW directory is seeded with whiteouts so
// it starts logically empty (spec.md §4.4 HideDirectoryContents).
func (e *Engine) Mkdir(dirLogical, name string, mode os.FileMode, caller Caller) (string, error) {
	logicalPath := path.Join(dirLogical, name)
	var rwConcrete string
	err := e.Mount.elev.Elevated(func() error {
		if _, err := e.Resolver.FindFile(logicalPath, 0, caller); err == nil {
			return wrap(ErrExists, "mkdir", logicalPath)
		}

		dirRes, err := e.ensureWritable(dirLogical, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(dirLogical, dirRes.Concrete, dirRes.Branch, caller, Write); err != nil {
			return err
		}

		concrete, err := e.CopyUp.FindPath(logicalPath)
		if err != nil {
			return err
		}
		if err := e.Mount.sys.Mkdir(concrete, mode); err != nil {
			return err
		}
		if err := e.Mount.sys.NotifyChange(concrete, Attr{Uid: caller.Uid, Gid: caller.Gid}, ChangeOwner); err != nil {
			e.Mount.sys.Rmdir(concrete)
			return err
		}

		if _, wasWhited, err := e.Whiteout.Find(logicalPath); err == nil && wasWhited {
			e.Whiteout.Remove(logicalPath)
		}

		roConcrete, err := e.Mount.t.makeRO(logicalPath)
		if err == nil && e.Mount.sys.Exists(roConcrete) {
			if err := e.Whiteout.HideDirectoryContents(logicalPath, roConcrete); err != nil {
				return err
			}
		}

		rwConcrete = concrete
		return nil
	})
	return rwConcrete, err
}

// Mknod implements mknod()/mkfifo(): device, socket and FIFO creation,
// always on RW.
func (e *Engine) Mknod(dirLogical, name string, mode os.FileMode, rdev uint64, caller Caller) (string, error) {
	logicalPath := path.Join(dirLogical, name)
	var rwConcrete string
	err := e.Mount.elev.Elevated(func() error {
		if _, err := e.Resolver.FindFile(logicalPath, 0, caller); err == nil {
			return wrap(ErrExists, "mknod", logicalPath)
		}
		dirRes, err := e.ensureWritable(dirLogical, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(dirLogical, dirRes.Concrete, dirRes.Branch, caller, Write); err != nil {
			return err
		}
		concrete, err := e.CopyUp.FindPath(logicalPath)
		if err != nil {
			return err
		}
		if err := e.Mount.sys.Mknod(concrete, mode, rdev); err != nil {
			return err
		}
		if err := e.Mount.sys.NotifyChange(concrete, Attr{Uid: caller.Uid, Gid: caller.Gid}, ChangeOwner); err != nil {
			e.Mount.sys.Unlink(concrete)
			return err
		}
		if _, wasWhited, err := e.Whiteout.Find(logicalPath); err == nil && wasWhited {
			e.Whiteout.Remove(logicalPath)
		}
		rwConcrete = concrete
		return nil
	})
	return rwConcrete, err
}

// Symlink implements symlink(): always created on RW.
func (e *Engine) Symlink(dirLogical, name, target string, caller Caller) (string, error) {
	logicalPath := path.Join(dirLogical, name)
	var rwConcrete string
	err := e.Mount.elev.Elevated(func() error {
		if _, err := e.Resolver.FindFile(logicalPath, 0, caller); err == nil {
			return wrap(ErrExists, "symlink", logicalPath)
		}
		dirRes, err := e.ensureWritable(dirLogical, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(dirLogical, dirRes.Concrete, dirRes.Branch, caller, Write); err != nil {
			return err
		}
		concrete, err := e.CopyUp.FindPath(logicalPath)
		if err != nil {
			return err
		}
		if err := e.Mount.sys.Symlink(target, concrete); err != nil {
			return err
		}
		if _, wasWhited, err := e.Whiteout.Find(logicalPath); err == nil && wasWhited {
			e.Whiteout.Remove(logicalPath)
		}
		rwConcrete = concrete
		return nil
	})
	return rwConcrete, err
}

// Link implements link(). A hard link is only possible when the source
// already lives on RW; linking to an RO source instead creates a
// symlink pointing at the RO concrete path, the documented cross-branch
// fallback (spec.md §4.2 DESIGN NOTES, not an error).
func (e *Engine) Link(oldLogical, newDirLogical, newName string, caller Caller) (string, error) {
	newLogical := path.Join(newDirLogical, newName)
	var rwConcrete string
	err := e.Mount.elev.Elevated(func() error {
		if _, err := e.Resolver.FindFile(newLogical, 0, caller); err == nil {
			return wrap(ErrExists, "link", newLogical)
		}

		oldRes, err := e.Resolver.FindFile(oldLogical, 0, caller)
		if err != nil {
			return err
		}

		dirRes, err := e.ensureWritable(newDirLogical, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(newDirLogical, dirRes.Concrete, dirRes.Branch, caller, Write); err != nil {
			return err
		}

		concrete, err := e.CopyUp.FindPath(newLogical)
		if err != nil {
			return err
		}

		if oldRes.Branch == ReadOnly {
			if err := e.Mount.sys.Symlink(oldRes.Concrete, concrete); err != nil {
				return err
			}
		} else {
			if err := e.Mount.sys.Link(oldRes.Concrete, concrete); err != nil {
				return err
			}
		}

		if _, wasWhited, err := e.Whiteout.Find(newLogical); err == nil && wasWhited {
			e.Whiteout.Remove(newLogical)
		}
		rwConcrete = concrete
		return nil
	})
	return rwConcrete, err
}

// Unlink implements unlink(): removing a non-directory entry. An
// RW-only entry is deleted outright; an RO-visible entry (whether or
// not it also has an RW copy-up) is hidden with a whiteout, and any
// stray ME for it is cleaned up.
func (e *Engine) Unlink(dirLogical, name string, caller Caller) error {
	logicalPath := path.Join(dirLogical, name)
	return e.Mount.elev.Elevated(func() error {
		res, err := e.Resolver.FindFile(logicalPath, MustReadWrite, caller)
		rwOnly := err == nil

		if _, err := e.Resolver.FindFile(logicalPath, 0, caller); err != nil {
			return err
		}

		dirRes, err := e.Resolver.FindFile(dirLogical, 0, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(dirLogical, dirRes.Concrete, dirRes.Branch, caller, Write); err != nil {
			return err
		}

		roConcrete, err := e.Mount.t.makeRO(logicalPath)
		if err != nil {
			return err
		}
		roExists := e.Mount.sys.Exists(roConcrete)

		if rwOnly && !roExists {
			return e.Mount.sys.Unlink(res.Concrete)
		}

		if rwOnly {
			if err := e.Mount.sys.Unlink(res.Concrete); err != nil {
				return err
			}
		}

		_, _, hadME, err := e.Meta.Find(logicalPath)
		if err != nil {
			return err
		}
		var restoreAttr Attr
		if hadME {
			restoreAttr, err = e.Meta.GetMerged(logicalPath, roConcrete, ReadOnly)
			if err != nil {
				return err
			}
		}
		if err := e.Meta.Remove(logicalPath); err != nil {
			return err
		}

		if _, err := e.Whiteout.Create(logicalPath); err != nil {
			if errors.Is(err, ErrExists) {
				// Already whited out: idempotent success.
				return nil
			}
			if hadME {
				roAttr, statErr := e.Mount.sys.Lstat(roConcrete)
				if statErr == nil {
					e.Meta.Set(logicalPath, roAttr, restoreAttr, ChangeAll)
				}
			}
			return err
		}
		return nil
	})
}

// Rmdir implements rmdir(): like Unlink but requires the directory be
// logically empty across both branches first.
func (e *Engine) Rmdir(dirLogical, name string, caller Caller) error {
	logicalPath := path.Join(dirLogical, name)
	return e.Mount.elev.Elevated(func() error {
		if _, err := e.Resolver.FindFile(logicalPath, 0, caller); err != nil {
			return err
		}

		dirRes, err := e.Resolver.FindFile(dirLogical, 0, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(dirLogical, dirRes.Concrete, dirRes.Branch, caller, Write); err != nil {
			return err
		}

		roConcrete, err := e.Mount.t.makeRO(logicalPath)
		if err != nil {
			return err
		}
		rwConcrete, err := e.Mount.t.makeRW(logicalPath)
		if err != nil {
			return err
		}
		rwExists := e.Mount.sys.Exists(rwConcrete)
		roExists := e.Mount.sys.Exists(roConcrete)

		empty, err := e.Whiteout.IsEmptyDir(logicalPath, roConcrete, rwConcrete)
		if err != nil {
			return err
		}
		if !empty {
			return wrap(ErrNotEmpty, "rmdir", logicalPath)
		}

		if rwExists {
			if err := e.Mount.sys.Rmdir(rwConcrete); err != nil {
				return err
			}
		}

		_, _, hadME, err := e.Meta.Find(logicalPath)
		if err != nil {
			return err
		}
		var restoreAttr Attr
		if hadME {
			restoreAttr, err = e.Meta.GetMerged(logicalPath, roConcrete, ReadOnly)
			if err != nil {
				return err
			}
		}
		if err := e.Meta.Remove(logicalPath); err != nil {
			return err
		}

		if !roExists {
			return nil
		}
		if _, err := e.Whiteout.Create(logicalPath); err != nil {
			if errors.Is(err, ErrExists) {
				return nil
			}
			if hadME {
				roAttr, statErr := e.Mount.sys.Lstat(roConcrete)
				if statErr == nil {
					e.Meta.Set(logicalPath, roAttr, restoreAttr, ChangeAll)
				}
			}
			return err
		}
		return nil
	})
}

// OpenForWrite resolves logicalPath guaranteeing a write-capable
// concrete path, triggering copy-up when the current resolution is
// read-only.
func (e *Engine) OpenForWrite(logicalPath string, caller Caller) (Result, error) {
	var result Result
	err := e.Mount.elev.Elevated(func() error {
		res, err := e.Resolver.FindFile(logicalPath, 0, caller)
		if err != nil {
			return err
		}
		if err := e.Access.CanAccess(logicalPath, res.Concrete, res.Branch, caller, Write); err != nil {
			return err
		}
		if res.Branch == ReadOnly {
			res, err = e.Resolver.FindFile(logicalPath, CreateCopyupFlag, caller)
			if err != nil {
				return err
			}
		}
		result = res
		return nil
	})
	return result, err
}

// OpenForRead resolves logicalPath for a read-only open: no copy-up, no
// mutation, so it runs outside the elevation lock.
func (e *Engine) OpenForRead(logicalPath string, caller Caller) (Result, error) {
	res, err := e.Resolver.FindFile(logicalPath, 0, caller)
	if err != nil {
		return Result{}, err
	}
	if err := e.Access.CanAccess(logicalPath, res.Concrete, res.Branch, caller, Read); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Readdir lists logicalPath's merged contents.
func (e *Engine) Readdir(logicalPath string, caller Caller) ([]DirEntry, error) {
	res, err := e.Resolver.FindFile(logicalPath, 0, caller)
	if err != nil {
		return nil, err
	}
	if err := e.Access.CanAccess(logicalPath, res.Concrete, res.Branch, caller, Read|Exec); err != nil {
		return nil, err
	}
	return Readdir(e.Mount, logicalPath)
}
