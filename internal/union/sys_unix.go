package union

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// ChangeFlags selects which attribute dimensions an operation touches,
// matching the OWNER/MODE/TIME subset spec.md's set_me and notify_change
// operate on.
type ChangeFlags uint8

const (
	ChangeOwner ChangeFlags = 1 << iota
	ChangeMode
	ChangeTime
)

const ChangeAll = ChangeOwner | ChangeMode | ChangeTime

// fsys is the narrow underlying-FS trait the design calls for in place of
// dual-kernel-ABI conditional compilation: one interface, one
// implementation per host. Only a Unix implementation is provided, since
// every example FUSE host in the pack (go-fuse, bazil.org/fuse) is
// Unix/Darwin-only.
type fsys interface {
	Lstat(path string) (Attr, error)
	Exists(path string) bool
	Open(path string, flag int, perm os.FileMode) (*os.File, error)
	Mkdir(path string, mode os.FileMode) error
	Rmdir(path string) error
	Unlink(path string) error
	Symlink(target, path string) error
	Link(oldPath, newPath string) error
	Readlink(path string) (string, error)
	Mknod(path string, mode os.FileMode, rdev uint64) error
	ReadDirNames(path string) ([]string, error)
	NotifyChange(path string, attr Attr, flags ChangeFlags) error
}

// unixFS is the Unix implementation of fsys, built on os and
// golang.org/x/sys/unix the way rclone's backend/local helpers
// (lchtimes_unix.go, lchmod_unix.go) reach past os for link-aware
// attribute changes.
type unixFS struct{}

func (unixFS) Lstat(path string) (Attr, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Attr{}, err
	}
	return FromFileInfo(fi), nil
}

func (unixFS) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (unixFS) Open(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

func (unixFS) Mkdir(path string, mode os.FileMode) error {
	return os.Mkdir(path, mode)
}

func (unixFS) Rmdir(path string) error {
	return unix.Rmdir(path)
}

func (unixFS) Unlink(path string) error {
	return unix.Unlink(path)
}

func (unixFS) Symlink(target, path string) error {
	return os.Symlink(target, path)
}

func (unixFS) Link(oldPath, newPath string) error {
	return os.Link(oldPath, newPath)
}

func (unixFS) Readlink(path string) (string, error) {
	return os.Readlink(path)
}

// Mknod creates a device, socket or FIFO node. Callers pass
// os.ModeNamedPipe in mode (with rdev 0) for FIFOs, matching
// create_copyup's dispatch in spec.md §4.5; syscallMode turns it into
// S_IFIFO.
func (unixFS) Mknod(path string, mode os.FileMode, rdev uint64) error {
	return unix.Mknod(path, syscallMode(mode), int(rdev))
}

func (unixFS) ReadDirNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

// NotifyChange applies the requested attribute dimensions to path,
// mirroring the kernel's notify_change: owner via Lchown and times via
// UtimesNanoAt with AT_SYMLINK_NOFOLLOW, neither following a trailing
// symlink; mode via Fchmodat with flags 0, which does follow a trailing
// symlink (callers skip ChangeMode for symlinks).
func (unixFS) NotifyChange(path string, attr Attr, flags ChangeFlags) error {
	if flags&ChangeOwner != 0 {
		if err := unix.Lchown(path, int(attr.Uid), int(attr.Gid)); err != nil {
			return &os.PathError{Op: "lchown", Path: path, Err: err}
		}
	}
	if flags&ChangeMode != 0 {
		if err := unix.Fchmodat(unix.AT_FDCWD, path, syscallMode(attr.Mode), 0); err != nil {
			return &os.PathError{Op: "chmod", Path: path, Err: err}
		}
	}
	if flags&ChangeTime != 0 {
		ts := [2]unix.Timespec{
			unix.NsecToTimespec(attr.Atime.UnixNano()),
			unix.NsecToTimespec(attr.Mtime.UnixNano()),
		}
		if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, ts[:], unix.AT_SYMLINK_NOFOLLOW); err != nil {
			return &os.PathError{Op: "utimes", Path: path, Err: err}
		}
	}
	return nil
}

// syscallMode returns the syscall-specific mode bits from Go's portable
// mode bits. Borrowed from the same approach rclone's backend/local uses
// since the conversion isn't exported by the standard library.
func syscallMode(i os.FileMode) uint32 {
	o := uint32(i.Perm())
	if i&os.ModeSetuid != 0 {
		o |= syscall.S_ISUID
	}
	if i&os.ModeSetgid != 0 {
		o |= syscall.S_ISGID
	}
	if i&os.ModeSticky != 0 {
		o |= syscall.S_ISVTX
	}
	switch {
	case i&os.ModeNamedPipe != 0:
		o |= syscall.S_IFIFO
	case i&os.ModeSocket != 0:
		o |= syscall.S_IFSOCK
	case i&os.ModeDevice != 0:
		if i&os.ModeCharDevice != 0 {
			o |= syscall.S_IFCHR
		} else {
			o |= syscall.S_IFBLK
		}
	case i&os.ModeDir != 0:
		o |= syscall.S_IFDIR
	case i&os.ModeSymlink != 0:
		o |= syscall.S_IFLNK
	default:
		o |= syscall.S_IFREG
	}
	return o
}
