package fuseadapter

import (
	"context"
	"io"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var (
	_ = (fs.NodeOpener)((*unionFile)(nil))
	_ = (fs.NodeReader)((*unionFile)(nil))
	_ = (fs.NodeWriter)((*unionFile)(nil))
	_ = (fs.NodeFlusher)((*unionFile)(nil))
	_ = (fs.NodeFsyncer)((*unionFile)(nil))
	_ = (fs.NodeReleaser)((*unionFile)(nil))
	_ = (fs.NodeGetattrer)((*unionFile)(nil))
	_ = (fs.NodeSetattrer)((*unionFile)(nil))
)

// unionFile is a regular-file (or symlink/device/fifo) inode. Its data
// path is resolved lazily on Open, via the engine, so a write-triggered
// copy-up is invisible to the FUSE client: the handle just starts
// pointing at the RW-concrete file instead of the RO one.
type unionFile struct {
	node
}

// fileHandle wraps the concrete *os.File backing an open union file.
type fileHandle struct {
	f *os.File
}

func (f *unionFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	caller := callerFromContext(ctx)

	wantsWrite := flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0
	var (
		concrete string
		err      error
	)
	if wantsWrite {
		res, e := f.eng.OpenForWrite(f.logicalPath, caller)
		concrete, err = res.Concrete, e
	} else {
		res, e := f.eng.OpenForRead(f.logicalPath, caller)
		concrete, err = res.Concrete, e
	}
	if err != nil {
		return nil, 0, errno(err)
	}

	osFlags := int(flags) &^ syscall.O_CREAT &^ syscall.O_EXCL
	osf, oerr := os.OpenFile(concrete, osFlags, 0)
	if oerr != nil {
		return nil, 0, fs.ToErrno(oerr)
	}
	return &fileHandle{f: osf}, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (f *unionFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h, ok := fh.(*fileHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	n, err := h.f.ReadAt(dest, off)
	if err != nil && err != io.EOF {
		return nil, fs.ToErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), fs.OK
}

func (f *unionFile) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	h, ok := fh.(*fileHandle)
	if !ok {
		return 0, syscall.EBADF
	}
	n, err := h.f.WriteAt(data, off)
	if err != nil {
		return uint32(n), fs.ToErrno(err)
	}
	return uint32(n), fs.OK
}

func (f *unionFile) Flush(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	h, ok := fh.(*fileHandle)
	if !ok {
		return syscall.EBADF
	}
	// Dup-and-close the way the kernel expects Flush to behave: a
	// client may call close() more than once per open, and only the
	// underlying fd's own close matters for data durability here.
	newFd, err := syscall.Dup(int(h.f.Fd()))
	if err != nil {
		return fs.ToErrno(err)
	}
	return fs.ToErrno(syscall.Close(newFd))
}

func (f *unionFile) Fsync(ctx context.Context, fh fs.FileHandle, flags uint32) syscall.Errno {
	h, ok := fh.(*fileHandle)
	if !ok {
		return syscall.EBADF
	}
	return fs.ToErrno(h.f.Sync())
}

func (f *unionFile) Release(ctx context.Context, fh fs.FileHandle) syscall.Errno {
	h, ok := fh.(*fileHandle)
	if !ok {
		return syscall.EBADF
	}
	return fs.ToErrno(h.f.Close())
}

func (f *unionFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	_, attr, err := f.eng.Getattr(f.logicalPath, callerFromContext(ctx))
	if err != nil {
		return errno(err)
	}
	attrToFuse(&out.Attr, f.eng.Mount.NameToIno(f.logicalPath), attr)
	return fs.OK
}

func (f *unionFile) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	newAttr, flags := setAttrFromIn(in)
	attr, err := f.eng.Setattr(f.logicalPath, newAttr, flags, callerFromContext(ctx))
	if err != nil {
		return errno(err)
	}
	attrToFuse(&out.Attr, f.eng.Mount.NameToIno(f.logicalPath), attr)
	return fs.OK
}
