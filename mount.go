// Package hepfs wires a two-branch union filesystem core
// (internal/union) to a go-fuse server.
package hepfs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/hepunion/hepfs/internal/fuseadapter"
	"github.com/hepunion/hepfs/internal/union"
)

// branch is one half of a parsed mount argument (spec.md §6 grammar).
type branch struct {
	path  string
	rw    bool
	typed bool
}

// ParseBranches parses the "PATH[=RO|RW]:PATH[=RO|RW]" mount argument
// grammar. Exactly one branch must resolve to RW: if neither is typed,
// the first is RO and the second is RW.
func ParseBranches(arg string) (ro, rw string, err error) {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("mount argument %q: want BRANCH:BRANCH", arg)
	}

	a, err := parseBranch(parts[0])
	if err != nil {
		return "", "", err
	}
	b, err := parseBranch(parts[1])
	if err != nil {
		return "", "", err
	}

	switch {
	case a.typed && b.typed && a.rw == b.rw:
		return "", "", fmt.Errorf("mount argument %q: both branches typed %s", arg, rwLabel(a.rw))
	case a.rw:
		return b.path, a.path, nil
	case b.rw:
		return a.path, b.path, nil
	case b.typed:
		// Second typed RO, first untyped: the first is RW.
		return b.path, a.path, nil
	default:
		// Neither typed RW: first is RO, second is RW.
		return a.path, b.path, nil
	}
}

func rwLabel(rw bool) string {
	if rw {
		return "RW"
	}
	return "RO"
}

func parseBranch(s string) (branch, error) {
	path := s
	b := branch{}
	if idx := strings.LastIndex(s, "="); idx >= 0 {
		switch tag := s[idx+1:]; tag {
		case "RO":
			path, b.typed, b.rw = s[:idx], true, false
		case "RW":
			path, b.typed, b.rw = s[:idx], true, true
		default:
			return branch{}, fmt.Errorf("branch %q: unrecognized type tag %q", s, tag)
		}
	}
	path = strings.TrimSuffix(path, "/")
	if !filepath.IsAbs(path) {
		return branch{}, fmt.Errorf("branch %q: must be an absolute path", s)
	}
	b.path = path
	return b, nil
}

// Option configures a Mount at construction time.
type Option func(*config)

type config struct {
	debug     bool
	allowOwn  bool
	name      string
	unionOpts []union.Option
}

// WithDebug enables FUSE protocol tracing, the way hepunion's opts.c
// recognizes a "debug" mount option.
func WithDebug(debug bool) Option {
	return func(c *config) { c.debug = debug }
}

// WithAllowOther sets fuse.MountOptions.AllowOther.
func WithAllowOther(allow bool) Option {
	return func(c *config) { c.allowOwn = allow }
}

// WithSeed pins the Mount's inode-hash seed; see union.WithSeed.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.unionOpts = append(c.unionOpts, union.WithSeed(seed)) }
}

// WithLogger overrides the default slog logger used by the union core.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.unionOpts = append(c.unionOpts, union.WithLogger(l)) }
}

// Mount is a live union-filesystem FUSE mount.
type Mount struct {
	srv        *fuse.Server
	eng        *union.Engine
	mountPoint string
}

// MountPoint returns the absolute path the filesystem is mounted at.
func (m *Mount) MountPoint() string { return m.mountPoint }

// Wait blocks until the filesystem is unmounted.
func (m *Mount) Wait() { m.srv.Wait() }

// Unmount requests the kernel tear down the mount.
func (m *Mount) Unmount() error { return m.srv.Unmount() }

// Engine exposes the underlying union core, mainly for tests and tools
// that want to inspect engine state without going through the kernel.
func (m *Mount) Engine() *union.Engine { return m.eng }

// New builds the union core for (roRoot, rwRoot) and starts a FUSE
// server at mountPoint, mirroring OCIFS.Mount's shape: validate inputs,
// build the root filesystem object, hand it to fs.Mount.
func New(roRoot, rwRoot, mountPoint string, opts ...Option) (*Mount, error) {
	cfg := config{name: "hepfs"}
	for _, o := range opts {
		o(&cfg)
	}

	mountPoint = filepath.Clean(mountPoint)
	if !filepath.IsAbs(mountPoint) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		mountPoint = filepath.Clean(filepath.Join(cwd, mountPoint))
	}

	eng, err := union.NewEngine(roRoot, rwRoot, cfg.unionOpts...)
	if err != nil {
		return nil, err
	}

	root := fuseadapter.Root(eng)

	srv, err := fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther:  cfg.allowOwn,
			Name:        cfg.name,
			FsName:      roRoot + ":" + rwRoot,
			DirectMount: true,
			Debug:       cfg.debug,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Mount{srv: srv, eng: eng, mountPoint: mountPoint}, nil
}
