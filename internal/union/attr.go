package union

import (
	"os"
	"syscall"
	"time"
)

// ValidModesMask covers setuid/setgid/sticky and rwx for user/group/other.
// ME sidecars store their mode bits masked through this; the file-type
// bits of a sidecar are meaningless for the logical object it describes.
const ValidModesMask = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

// Attr is the merged, logical attribute set for a union path: the
// concrete stat, possibly overlaid by an ME sidecar (see MetaEngine.GetMerged).
type Attr struct {
	Mode  os.FileMode
	Uid   uint32
	Gid   uint32
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	// Rdev is only meaningful for device nodes (char/block).
	Rdev uint64
}

// FromFileInfo builds an Attr from a concrete stat result. fi.Sys() must
// be a *syscall.Stat_t, true for every os.File on a Unix host.
func FromFileInfo(fi os.FileInfo) Attr {
	st := fi.Sys().(*syscall.Stat_t)
	return Attr{
		Mode:  fi.Mode(),
		Uid:   st.Uid,
		Gid:   st.Gid,
		Size:  fi.Size(),
		Atime: time.Unix(st.Atim.Sec, st.Atim.Nsec),
		Mtime: fi.ModTime(),
		Ctime: time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
		Rdev:  uint64(st.Rdev),
	}
}

// overlayMode replaces the permission/setuid/setgid/sticky bits of base
// with the matching bits of me, keeping base's file-type bits. ME files
// are regular files on disk; their own type bits never apply.
func overlayMode(base, me os.FileMode) os.FileMode {
	return (base &^ ValidModesMask) | (me & ValidModesMask)
}
