// Package fuseadapter is the out-of-scope VFS glue made concrete enough
// to run: go-fuse nodes that translate FUSE callbacks into
// internal/union calls and translate internal/union errors back into
// syscall.Errno.
package fuseadapter

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hepunion/hepfs/internal/union"
)

// Root returns the FUSE root node for a mounted union, wired to eng.
func Root(eng *union.Engine) fs.InodeEmbedder {
	return &unionDir{node: node{logicalPath: "/", eng: eng}}
}

// node is the state shared by every inode in the tree: its logical
// union path and a handle to the engine that resolves it. Directories
// and regular/special files embed it but expose different FUSE
// callback sets, mirroring the dir/file split of the teacher's
// original unionDir/ociFile pair.
type node struct {
	fs.Inode
	logicalPath string
	eng         *union.Engine
}

// callerFromContext extracts the requesting uid/gid from the FUSE
// request, falling back to the superuser identity when go-fuse hasn't
// attached one (e.g. in tests driving nodes directly).
func callerFromContext(ctx context.Context) union.Caller {
	if c, ok := fuse.FromContext(ctx); ok {
		return union.Caller{Uid: c.Uid, Gid: c.Gid}
	}
	return union.Root
}

// attrToFuse fills a fuse.Attr from a merged union.Attr.
func attrToFuse(out *fuse.Attr, ino uint64, attr union.Attr) {
	out.Ino = ino
	out.Mode = uint32(attr.Mode)
	out.Size = uint64(attr.Size)
	out.Uid = attr.Uid
	out.Gid = attr.Gid
	out.SetTimes(timePtr(attr.Atime), timePtr(attr.Mtime), timePtr(attr.Ctime))
	if attr.Mode&os.ModeDevice != 0 {
		out.Rdev = uint32(attr.Rdev)
	}
}

func timePtr(t time.Time) *time.Time { return &t }

// stableAttrFor derives the go-fuse StableAttr (inode number + type
// bits) for a resolved union entry.
func stableAttrFor(ino uint64, mode os.FileMode) fs.StableAttr {
	var fuseMode uint32
	switch {
	case mode.IsDir():
		fuseMode = fuse.S_IFDIR
	case mode&os.ModeSymlink != 0:
		fuseMode = fuse.S_IFLNK
	case mode&os.ModeNamedPipe != 0:
		fuseMode = fuse.S_IFIFO
	case mode&os.ModeSocket != 0:
		fuseMode = fuse.S_IFSOCK
	case mode&os.ModeCharDevice != 0:
		fuseMode = fuse.S_IFCHR
	case mode&os.ModeDevice != 0:
		fuseMode = fuse.S_IFBLK
	default:
		fuseMode = fuse.S_IFREG
	}
	return fs.StableAttr{Mode: fuseMode, Ino: ino}
}

// errno maps an internal/union sentinel error to the syscall.Errno a
// FUSE client expects.
func errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return fs.OK
	case isErr(err, union.ErrNotFound):
		return syscall.ENOENT
	case isErr(err, union.ErrExists):
		return syscall.EEXIST
	case isErr(err, union.ErrNameTooLong):
		return syscall.ENAMETOOLONG
	case isErr(err, union.ErrInvalid):
		return syscall.EINVAL
	case isErr(err, union.ErrPermission):
		return syscall.EACCES
	case isErr(err, union.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case isErr(err, union.ErrCrossBranch):
		return syscall.EXDEV
	case isErr(err, union.ErrBug):
		return syscall.EIO
	default:
		return fs.ToErrno(err)
	}
}

func isErr(err, target error) bool { return errors.Is(err, target) }
