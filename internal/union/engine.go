package union

// Engine bundles a Mount with its five cooperating components (Path
// Translator is stateless and lives inside Mount as `t`). It is the
// single entry point a VFS adapter is expected to hold one of per
// mounted union.
type Engine struct {
	Mount    *Mount
	Meta     *MetaEngine
	Whiteout *WhiteoutEngine
	CopyUp   *CopyUpEngine
	Resolver *Resolver
	Access   *AccessGate
}

// NewEngine validates the branch roots and wires the five components
// together.
func NewEngine(roRoot, rwRoot string, opts ...Option) (*Engine, error) {
	m, err := NewMount(roRoot, rwRoot, opts...)
	if err != nil {
		return nil, err
	}

	me := newMetaEngine(m)
	cow := newCopyUpEngine(m, me)
	wh := newWhiteoutEngine(m, cow)
	access := newAccessGate(m, me)
	resolver := newResolver(m, me, wh, cow, access)

	return &Engine{
		Mount:    m,
		Meta:     me,
		Whiteout: wh,
		CopyUp:   cow,
		Resolver: resolver,
		Access:   access,
	}, nil
}
