package union

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Mount is the per-mounted-union context: the data model's Mount
// Context. Branch roots are immutable after construction; the
// elevation lock protects the identity-elevation block used for
// underlying-FS operations (see elevate.go).
type Mount struct {
	roRoot string
	rwRoot string
	t      translator
	sys    fsys

	magic uint64

	elev    elevation
	metrics *metrics
	log     *slog.Logger
}

// Option configures a Mount at construction time.
type Option func(*mountConfig)

type mountConfig struct {
	seed    *uint64
	logger  *slog.Logger
	metrics *metrics
}

// WithSeed pins the inode-hash seed instead of deriving one from a fresh
// UUID. Tests use this to make name_to_ino deterministic (spec.md P4).
func WithSeed(seed uint64) Option {
	return func(c *mountConfig) { c.seed = &seed }
}

// WithLogger overrides the default slog logger (slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *mountConfig) { c.logger = l }
}

// NewMount validates the two branch roots and builds a Mount context.
// Invariants enforced: both roots exist and are directories, neither
// ends in '/', and neither is a prefix of the other.
func NewMount(roRoot, rwRoot string, opts ...Option) (*Mount, error) {
	cfg := mountConfig{logger: slog.Default(), metrics: defaultMetrics}
	for _, o := range opts {
		o(&cfg)
	}

	sys := unixFS{}

	for _, r := range []string{roRoot, rwRoot} {
		if strings.HasSuffix(r, "/") {
			return nil, wrap(ErrInvalid, "mount", r)
		}
		attr, err := sys.Lstat(r)
		if err != nil {
			return nil, fmt.Errorf("mount %s: %w", r, err)
		}
		if !attr.Mode.IsDir() {
			return nil, wrap(ErrInvalid, "mount", r)
		}
	}
	if strings.HasPrefix(roRoot, rwRoot+"/") || strings.HasPrefix(rwRoot, roRoot+"/") || roRoot == rwRoot {
		return nil, wrap(ErrInvalid, "mount", roRoot+":"+rwRoot)
	}

	seed := cfg.seed
	if seed == nil {
		derived := defaultSeed()
		seed = &derived
	}

	// hash.c-style seeding: derive the mount magic from both branch
	// roots combined with the base seed, so two mounts sharing logical
	// paths never collide even when the caller reuses a seed.
	magic := murmur64A([]byte(roRoot+"\x00"+rwRoot), *seed)

	return &Mount{
		roRoot:  roRoot,
		rwRoot:  rwRoot,
		t:       newTranslator(roRoot, rwRoot),
		sys:     sys,
		magic:   magic,
		metrics: cfg.metrics,
		log:     cfg.logger,
	}, nil
}

// Magic returns the mount's inode-hash seed. No statfs handler exists
// in this repository, so it is not reported as an f_fsid anywhere.
func (m *Mount) Magic() uint64 { return m.magic }

func (m *Mount) RORoot() string { return m.roRoot }
func (m *Mount) RWRoot() string { return m.rwRoot }

// NameToIno derives the inode number for a logical path under this mount.
func (m *Mount) NameToIno(logicalPath string) uint64 {
	return nameToIno(logicalPath, m.magic)
}

func defaultSeed() uint64 {
	id := uuid.New()
	b := id[:8]
	return binary.BigEndian.Uint64(b)
}
