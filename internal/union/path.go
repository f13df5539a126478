package union

import "strings"

// MaxPathLen bounds a composed concrete path. Nominal per the design: 4096.
const MaxPathLen = 4096

// SidecarKind selects which reserved-prefix sidecar a logical name maps to.
type SidecarKind int

const (
	// SidecarME is the metadata sidecar: ".me." + name.
	SidecarME SidecarKind = iota
	// SidecarWH is the whiteout sidecar: ".wh." + name.
	SidecarWH
)

const (
	mePrefix = ".me."
	whPrefix = ".wh."
)

// translator is a stateless mapper between logical union paths and
// concrete branch paths. It never touches the filesystem.
type translator struct {
	roRoot string
	rwRoot string
}

func newTranslator(roRoot, rwRoot string) translator {
	return translator{roRoot: roRoot, rwRoot: rwRoot}
}

// makeRO concatenates the RO branch root with a logical path.
func (t translator) makeRO(p string) (string, error) {
	return t.concat(t.roRoot, p)
}

// makeRW concatenates the RW branch root with a logical path.
func (t translator) makeRW(p string) (string, error) {
	return t.concat(t.rwRoot, p)
}

func (t translator) concat(root, p string) (string, error) {
	out := root + p
	if len(out) > MaxPathLen {
		return "", wrap(ErrNameTooLong, "translate", p)
	}
	return out, nil
}

// toSidecar computes the RW-concrete path of P's ME or WH sidecar:
// split P into (dir, name) at the last '/', then
// RW_ROOT + dir + "/" + prefix + name.
func (t translator) toSidecar(p string, kind SidecarKind) (string, error) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", wrap(ErrInvalid, "to_sidecar", p)
	}
	dir, name := p[:i], p[i+1:]

	prefix := mePrefix
	if kind == SidecarWH {
		prefix = whPrefix
	}

	sep := "/"
	if strings.HasSuffix(dir, "/") {
		sep = ""
	}
	return t.concat(t.rwRoot, dir+sep+prefix+name)
}

// isSpecial reports whether name is "." or "..".
func isSpecial(name string) bool {
	return name == "." || name == ".."
}

// isMe reports whether name is a ME sidecar name.
func isMe(name string) bool {
	return len(name) > len(mePrefix) && strings.HasPrefix(name, mePrefix)
}

// isWhiteout reports whether name is a WH sidecar name.
func isWhiteout(name string) bool {
	return len(name) > len(whPrefix) && strings.HasPrefix(name, whPrefix)
}

// splitParent splits a logical path into (parentDir, leaf) at the last '/'.
func splitParent(p string) (dir, leaf string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	if i == 0 {
		return "/", p[1:]
	}
	return p[:i], p[i+1:]
}
