package fuseadapter

import (
	"context"
	"os"
	"path"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hepunion/hepfs/internal/union"
)

var (
	_ = (fs.NodeLookuper)((*unionDir)(nil))
	_ = (fs.NodeReaddirer)((*unionDir)(nil))
	_ = (fs.NodeMkdirer)((*unionDir)(nil))
	_ = (fs.NodeMknoder)((*unionDir)(nil))
	_ = (fs.NodeSymlinker)((*unionDir)(nil))
	_ = (fs.NodeLinker)((*unionDir)(nil))
	_ = (fs.NodeCreater)((*unionDir)(nil))
	_ = (fs.NodeUnlinker)((*unionDir)(nil))
	_ = (fs.NodeRmdirer)((*unionDir)(nil))
	_ = (fs.NodeGetattrer)((*unionDir)(nil))
	_ = (fs.NodeSetattrer)((*unionDir)(nil))
)

// unionDir is a directory inode: every operation that names a child
// (lookup, mkdir, create, ...) goes through this type. Regular files,
// once looked up, switch to unionFile for their own callback set.
type unionDir struct {
	node
}

func (d *unionDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	_, attr, err := d.eng.Lookup(d.logicalPath, name, callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	childLogical := path.Join(d.logicalPath, name)
	ino := d.eng.Mount.NameToIno(childLogical)
	attrToFuse(&out.Attr, ino, attr)
	return d.newChild(ctx, childLogical, ino, attr.Mode), fs.OK
}

func (d *unionDir) newChild(ctx context.Context, logicalPath string, ino uint64, mode os.FileMode) *fs.Inode {
	stable := stableAttrFor(ino, mode)
	if mode.IsDir() {
		child := &unionDir{node: node{logicalPath: logicalPath, eng: d.eng}}
		return d.NewInode(ctx, child, stable)
	}
	child := &unionFile{node: node{logicalPath: logicalPath, eng: d.eng}}
	return d.NewInode(ctx, child, stable)
}

func (d *unionDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := d.eng.Readdir(d.logicalPath, callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		var fuseMode uint32
		switch {
		case e.Mode.IsDir():
			fuseMode = fuse.S_IFDIR
		case e.Mode&os.ModeSymlink != 0:
			fuseMode = fuse.S_IFLNK
		default:
			fuseMode = fuse.S_IFREG
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Ino: e.Ino, Mode: fuseMode})
	}
	return fs.NewListDirStream(out), fs.OK
}

func (d *unionDir) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	_, err := d.eng.Mkdir(d.logicalPath, name, os.FileMode(mode), callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	childLogical := path.Join(d.logicalPath, name)
	_, attr, err := d.eng.Getattr(childLogical, callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	ino := d.eng.Mount.NameToIno(childLogical)
	attrToFuse(&out.Attr, ino, attr)
	return d.newChild(ctx, childLogical, ino, attr.Mode), fs.OK
}

func (d *unionDir) Mknod(ctx context.Context, name string, mode, rdev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	_, err := d.eng.Mknod(d.logicalPath, name, os.FileMode(mode), uint64(rdev), callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	childLogical := path.Join(d.logicalPath, name)
	_, attr, err := d.eng.Getattr(childLogical, callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	ino := d.eng.Mount.NameToIno(childLogical)
	attrToFuse(&out.Attr, ino, attr)
	return d.newChild(ctx, childLogical, ino, attr.Mode), fs.OK
}

func (d *unionDir) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	_, err := d.eng.Symlink(d.logicalPath, name, target, callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	childLogical := path.Join(d.logicalPath, name)
	_, attr, err := d.eng.Getattr(childLogical, callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	ino := d.eng.Mount.NameToIno(childLogical)
	attrToFuse(&out.Attr, ino, attr)
	return d.newChild(ctx, childLogical, ino, attr.Mode), fs.OK
}

func (d *unionDir) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	src, ok := target.(interface{ Path() string })
	if !ok {
		return nil, syscall.EXDEV
	}
	_, err := d.eng.Link(src.Path(), d.logicalPath, name, callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	childLogical := path.Join(d.logicalPath, name)
	_, attr, err := d.eng.Getattr(childLogical, callerFromContext(ctx))
	if err != nil {
		return nil, errno(err)
	}
	ino := d.eng.Mount.NameToIno(childLogical)
	attrToFuse(&out.Attr, ino, attr)
	return d.newChild(ctx, childLogical, ino, attr.Mode), fs.OK
}

// Path exposes the node's logical path for Link's source-argument
// type assertion above.
func (n *node) Path() string { return n.logicalPath }

func (d *unionDir) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	caller := callerFromContext(ctx)
	rwConcrete, err := d.eng.Create(d.logicalPath, name, os.FileMode(mode), caller)
	if err != nil {
		return nil, nil, 0, errno(err)
	}

	childLogical := path.Join(d.logicalPath, name)
	_, attr, err := d.eng.Getattr(childLogical, caller)
	if err != nil {
		return nil, nil, 0, errno(err)
	}
	ino := d.eng.Mount.NameToIno(childLogical)
	attrToFuse(&out.Attr, ino, attr)

	f, oerr := os.OpenFile(rwConcrete, int(flags)&^os.O_CREATE&^os.O_EXCL|os.O_RDWR, 0)
	if oerr != nil {
		return nil, nil, 0, fs.ToErrno(oerr)
	}

	child := &unionFile{node: node{logicalPath: childLogical, eng: d.eng}}
	inode := d.NewInode(ctx, child, stableAttrFor(ino, attr.Mode))
	return inode, &fileHandle{f: f}, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (d *unionDir) Unlink(ctx context.Context, name string) syscall.Errno {
	return errno(d.eng.Unlink(d.logicalPath, name, callerFromContext(ctx)))
}

func (d *unionDir) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errno(d.eng.Rmdir(d.logicalPath, name, callerFromContext(ctx)))
}

func (d *unionDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	_, attr, err := d.eng.Getattr(d.logicalPath, callerFromContext(ctx))
	if err != nil {
		return errno(err)
	}
	attrToFuse(&out.Attr, d.eng.Mount.NameToIno(d.logicalPath), attr)
	return fs.OK
}

func (d *unionDir) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	newAttr, flags := setAttrFromIn(in)
	attr, err := d.eng.Setattr(d.logicalPath, newAttr, flags, callerFromContext(ctx))
	if err != nil {
		return errno(err)
	}
	attrToFuse(&out.Attr, d.eng.Mount.NameToIno(d.logicalPath), attr)
	return fs.OK
}

// setAttrFromIn translates a FUSE SetAttrIn's valid-bits mask into a
// union.Attr/union.ChangeFlags pair.
func setAttrFromIn(in *fuse.SetAttrIn) (union.Attr, union.ChangeFlags) {
	var attr union.Attr
	var flags union.ChangeFlags

	if mode, ok := in.GetMode(); ok {
		attr.Mode = os.FileMode(mode) & union.ValidModesMask
		flags |= union.ChangeMode
	}
	if uid, ok := in.GetUID(); ok {
		attr.Uid = uid
		flags |= union.ChangeOwner
	}
	if gid, ok := in.GetGID(); ok {
		attr.Gid = gid
		flags |= union.ChangeOwner
	}
	if atime, ok := in.GetATime(); ok {
		attr.Atime = atime
		flags |= union.ChangeTime
	}
	if mtime, ok := in.GetMTime(); ok {
		attr.Mtime = mtime
		flags |= union.ChangeTime
	}
	return attr, flags
}
