package union

// Branch identifies which concrete branch a resolved logical path lives
// on.
type Branch int

const (
	ReadOnly Branch = iota
	ReadWrite
	ReadWriteCopyup
)

func (b Branch) String() string {
	switch b {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case ReadWriteCopyup:
		return "read-write-copyup"
	default:
		return "unknown"
	}
}

// FindFlags are the independent resolver flags from spec.md §4.2.
type FindFlags uint8

const (
	// MustReadOnly skips the RW probe and goes straight to RO.
	MustReadOnly FindFlags = 1 << iota
	// MustReadWrite fails if the path is not found on RW.
	MustReadWrite
	// CreateCopyupFlag triggers a copy-up when the path is RO-only.
	CreateCopyupFlag
	// IgnoreWhiteout skips the WH Engine consultation, so an RO entry
	// resolves even when a whiteout hides it.
	IgnoreWhiteout
)

// Resolver implements find_file (spec.md §4.2): locating a logical path
// in the union, choosing a branch, and optionally triggering copy-up.
type Resolver struct {
	m      *Mount
	me     *MetaEngine
	wh     *WhiteoutEngine
	cow    *CopyUpEngine
	access *AccessGate
}

func newResolver(m *Mount, me *MetaEngine, wh *WhiteoutEngine, cow *CopyUpEngine, access *AccessGate) *Resolver {
	return &Resolver{m: m, me: me, wh: wh, cow: cow, access: access}
}

// Result is what FindFile returns on success.
type Result struct {
	Branch   Branch
	Concrete string // the concrete path backing the resolved branch
}

// FindFile resolves logicalPath against the union on behalf of caller.
func (r *Resolver) FindFile(logicalPath string, flags FindFlags, caller Caller) (Result, error) {
	if flags&MustReadOnly == 0 {
		rwConcrete, err := r.m.t.makeRW(logicalPath)
		if err != nil {
			return Result{}, err
		}
		if r.m.sys.Exists(rwConcrete) {
			if err := r.access.CanTraverse(logicalPath, caller); err != nil {
				return Result{}, err
			}
			return Result{Branch: ReadWrite, Concrete: rwConcrete}, nil
		}
		if flags&MustReadWrite != 0 {
			return Result{}, wrap(ErrNotFound, "find_file", logicalPath)
		}
	}

	roConcrete, err := r.m.t.makeRO(logicalPath)
	if err != nil {
		return Result{}, err
	}
	if !r.m.sys.Exists(roConcrete) {
		return Result{}, wrap(ErrNotFound, "find_file", logicalPath)
	}

	if flags&IgnoreWhiteout == 0 {
		if _, hidden, err := r.wh.Find(logicalPath); err != nil {
			return Result{}, err
		} else if hidden {
			return Result{}, wrap(ErrNotFound, "find_file", logicalPath)
		}
	}

	if err := r.access.CanTraverse(logicalPath, caller); err != nil {
		return Result{}, err
	}

	if flags&CreateCopyupFlag != 0 {
		rwConcrete, err := r.cow.CreateCopyup(logicalPath)
		if err != nil {
			return Result{}, err
		}
		return Result{Branch: ReadWriteCopyup, Concrete: rwConcrete}, nil
	}

	return Result{Branch: ReadOnly, Concrete: roConcrete}, nil
}
