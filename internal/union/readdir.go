package union

import (
	"os"
	"path"
)

// DirEntry is one unioned directory entry. Mode is the concrete entry's
// own Lstat mode, of which readdir consumers use only the type bits; it
// carries no ME overlay. Full merged attributes are fetched lazily
// per-entry via getattr, not during the directory scan.
type DirEntry struct {
	Name string
	Mode os.FileMode
	Ino  uint64
}

// Readdir implements the merger in spec.md §4.6: it unions RW and RO
// directory listings, applying WH and ME filtering, and returns a
// point-in-time snapshot. No duplicates are emitted, RW entries appear
// first, and .me./.wh. names are never emitted.
func Readdir(m *Mount, logicalPath string) ([]DirEntry, error) {
	rwConcrete, err := m.t.makeRW(logicalPath)
	if err != nil {
		return nil, err
	}
	roConcrete, err := m.t.makeRO(logicalPath)
	if err != nil {
		return nil, err
	}

	roExists := m.sys.Exists(roConcrete)

	var files []DirEntry
	seen := make(map[string]bool)
	whiteouts := make(map[string]bool)

	if rwNames, err := m.sys.ReadDirNames(rwConcrete); err == nil {
		for _, name := range rwNames {
			if isSpecial(name) {
				continue
			}
			switch {
			case isMe(name):
				continue
			case isWhiteout(name):
				if roExists {
					whiteouts[name[len(whPrefix):]] = true
				}
			default:
				ino := m.NameToIno(path.Join(logicalPath, name))
				mode := os.FileMode(0)
				if attr, err := m.sys.Lstat(path.Join(rwConcrete, name)); err == nil {
					mode = attr.Mode
				}
				files = append(files, DirEntry{Name: name, Mode: mode, Ino: ino})
				seen[name] = true
			}
		}
	}

	if roExists {
		if roNames, err := m.sys.ReadDirNames(roConcrete); err == nil {
			for _, name := range roNames {
				if isSpecial(name) || isMe(name) || isWhiteout(name) {
					continue
				}
				if whiteouts[name] || seen[name] {
					continue
				}
				ino := m.NameToIno(path.Join(logicalPath, name))
				mode := os.FileMode(0)
				if attr, err := m.sys.Lstat(path.Join(roConcrete, name)); err == nil {
					mode = attr.Mode
				}
				files = append(files, DirEntry{Name: name, Mode: mode, Ino: ino})
			}
		}
	}

	return files, nil
}
