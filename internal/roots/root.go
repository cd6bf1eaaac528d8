package roots

// Kind identifies a BuildRoot variant.
type Kind int

const (
	// KindNotYetImported is a linked root with no data.
	KindNotYetImported Kind = iota
	// KindUnsupported is a root whose tool version predates script models.
	KindUnsupported
	// KindImported is a root with a data snapshot.
	KindImported
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNotYetImported:
		return "not-yet-imported"
	case KindUnsupported:
		return "unsupported"
	case KindImported:
		return "imported"
	default:
		return "unknown"
	}
}

// BuildRoot is the closed set {*NotYetImported, *Unsupported, *Imported}.
// Switch on the concrete type; the unexported method keeps the set closed.
type BuildRoot interface {
	// PathPrefix is the normalized key the registry indexes the root by.
	PathPrefix() string
	// Settings returns the linked settings, or nil when unknown.
	Settings() *ProjectSettings
	// Kind returns the variant tag.
	Kind() Kind
	// Importing reports whether an import is in flight.
	Importing() bool

	withImporting(importing bool) BuildRoot
}

type rootBase struct {
	prefix    string
	settings  *ProjectSettings
	importing bool
}

func (b rootBase) PathPrefix() string         { return b.prefix }
func (b rootBase) Settings() *ProjectSettings { return b.settings }
func (b rootBase) Importing() bool            { return b.importing }

// NotYetImported is a linked root with no data collected.
type NotYetImported struct{ rootBase }

// Unsupported is a root whose tool cannot import per-script models.
type Unsupported struct{ rootBase }

// Imported is a root holding a last-known-good snapshot.
type Imported struct {
	rootBase
	Data   *BuildRootData
	Ledger *Ledger
}

// NewNotYetImported returns a root with no data.
func NewNotYetImported(prefix string, settings *ProjectSettings) *NotYetImported {
	return &NotYetImported{rootBase{prefix: prefix, settings: settings}}
}

// NewUnsupported returns a legacy root.
func NewUnsupported(prefix string, settings *ProjectSettings) *Unsupported {
	return &Unsupported{rootBase{prefix: prefix, settings: settings}}
}

// NewImported returns a root holding data. A nil ledger starts empty.
func NewImported(prefix string, settings *ProjectSettings, data *BuildRootData, ledger *Ledger) *Imported {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Imported{rootBase: rootBase{prefix: prefix, settings: settings}, Data: data, Ledger: ledger}
}

func (*NotYetImported) Kind() Kind { return KindNotYetImported }
func (*Unsupported) Kind() Kind    { return KindUnsupported }
func (*Imported) Kind() Kind       { return KindImported }

func (r *NotYetImported) withImporting(v bool) BuildRoot {
	c := *r
	c.importing = v
	return &c
}

func (r *Unsupported) withImporting(v bool) BuildRoot {
	c := *r
	c.importing = v
	return &c
}

func (r *Imported) withImporting(v bool) BuildRoot {
	c := *r
	c.importing = v
	return &c
}

// withLedger returns a copy of r holding ledger.
func (r *Imported) withLedger(ledger *Ledger) *Imported {
	c := *r
	c.Ledger = ledger
	return &c
}

// withSettings returns a copy of r linked to settings.
func (r *Imported) withSettings(settings *ProjectSettings) *Imported {
	c := *r
	c.settings = settings
	return &c
}

// withPrefix returns root keyed at prefix, copying it when the key differs.
func withPrefix(root BuildRoot, prefix string) BuildRoot {
	if root.PathPrefix() == prefix {
		return root
	}
	switch r := root.(type) {
	case *NotYetImported:
		c := *r
		c.prefix = prefix
		return &c
	case *Unsupported:
		c := *r
		c.prefix = prefix
		return &c
	case *Imported:
		c := *r
		c.prefix = prefix
		return &c
	}
	return root
}

func isImported(r BuildRoot) bool {
	_, ok := r.(*Imported)
	return ok
}

// kindFlipped reports an Imported to non-Imported transition or the reverse.
// An absent root counts as non-Imported.
func kindFlipped(prev, next BuildRoot) bool {
	return isImported(prev) != isImported(next)
}
