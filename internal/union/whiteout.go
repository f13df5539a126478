package union

import (
	"os"
	"path"
)

// WhiteoutEngine implements the WH mechanism (spec.md §4.4): a
// zero-length, mode-0400, root:root sentinel file on RW that hides a
// same-named RO entry from the union.
type WhiteoutEngine struct {
	m   *Mount
	cow *CopyUpEngine
}

func newWhiteoutEngine(m *Mount, cow *CopyUpEngine) *WhiteoutEngine {
	return &WhiteoutEngine{m: m, cow: cow}
}

// Create materializes a whiteout for logicalPath. It never clobbers an
// existing file at the whiteout path; on any failure after the file is
// created, the partial whiteout is removed.
//
// Two distinct failure shapes are reported, per original_source's
// distinction between a whiteout that couldn't be created because its
// parent isn't there and one that couldn't be created because it already
// is: a pre-existing whiteout fails with a wrapf(ErrExists, ...) that
// Unlink/Rmdir treat as already-done, while every other failure (most
// commonly the parent chain not materializing) fails with the
// unannotated underlying error and callers must restore any ME they
// speculatively removed.
func (e *WhiteoutEngine) Create(logicalPath string) (whPath string, err error) {
	whPath, err = e.m.t.toSidecar(logicalPath, SidecarWH)
	if err != nil {
		return "", err
	}

	// Ensure the parent directory chain exists on RW before creating the
	// sidecar; logicalPath's own RW-concrete path is discarded since the
	// actual file we create is the sidecar, not logicalPath itself.
	if _, err := e.cow.FindPath(logicalPath); err != nil {
		return "", err
	}

	f, err := e.m.sys.Open(whPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0400)
	if err != nil {
		if os.IsExist(err) {
			return "", wrapf(ErrExists, "whiteout", logicalPath, "already whited out")
		}
		return "", err
	}
	f.Close()

	if err := e.m.sys.NotifyChange(whPath, Attr{Uid: 0, Gid: 0}, ChangeOwner); err != nil {
		e.m.sys.Unlink(whPath)
		return "", err
	}

	e.m.metrics.whiteouts.Inc()
	return whPath, nil
}

// Find reports whether a whiteout exists for logicalPath, returning its
// RW-concrete path when it does.
func (e *WhiteoutEngine) Find(logicalPath string) (whPath string, ok bool, err error) {
	whPath, err = e.m.t.toSidecar(logicalPath, SidecarWH)
	if err != nil {
		return "", false, err
	}
	if e.m.sys.Exists(whPath) {
		return whPath, true, nil
	}
	return "", false, nil
}

// Remove unlinks the whiteout for logicalPath, if any.
func (e *WhiteoutEngine) Remove(logicalPath string) error {
	whPath, err := e.m.t.toSidecar(logicalPath, SidecarWH)
	if err != nil {
		return err
	}
	err = e.m.sys.Unlink(whPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HideDirectoryContents is invoked right after mkdir creates a new RW
// directory that masks a same-named RO directory: the new RW directory
// must start logically empty even though its RO twin is populated, so a
// whiteout is created for every non-special RO child.
func (e *WhiteoutEngine) HideDirectoryContents(logicalPath, roConcrete string) error {
	names, err := e.m.sys.ReadDirNames(roConcrete)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, name := range names {
		if isSpecial(name) || isMe(name) || isWhiteout(name) {
			continue
		}
		if _, err := e.Create(path.Join(logicalPath, name)); err != nil {
			return err
		}
	}
	return nil
}

// IsEmptyDir reports whether logicalPath is empty under the union: every
// RO child must have a matching WH on RW, and the RW twin (if any) must
// contain only WH entries. On success, all WH entries in the RW twin are
// deleted as a side effect, since the caller is about to remove the RW
// twin itself and the whiteouts would otherwise become orphans.
func (e *WhiteoutEngine) IsEmptyDir(logicalPath, roConcrete, rwConcrete string) (bool, error) {
	roNames, err := e.m.sys.ReadDirNames(roConcrete)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	for _, name := range roNames {
		if isSpecial(name) || isMe(name) || isWhiteout(name) {
			continue
		}
		_, hidden, err := e.Find(path.Join(logicalPath, name))
		if err != nil {
			return false, err
		}
		if !hidden {
			return false, nil
		}
	}

	var rwWhiteouts []string
	if rwConcrete != "" {
		rwNames, err := e.m.sys.ReadDirNames(rwConcrete)
		if err != nil && !os.IsNotExist(err) {
			return false, err
		}
		for _, name := range rwNames {
			if isSpecial(name) {
				continue
			}
			if !isWhiteout(name) {
				return false, nil
			}
			rwWhiteouts = append(rwWhiteouts, name)
		}
	}

	for _, name := range rwWhiteouts {
		original := name[len(whPrefix):]
		if err := e.Remove(path.Join(logicalPath, original)); err != nil {
			return false, err
		}
	}
	return true, nil
}
