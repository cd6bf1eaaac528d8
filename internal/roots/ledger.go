package roots

import "time"

// Ledger records files changed since a root's data was imported, mapping
// path keys to their last observed modification time.
//
// A Ledger is immutable; With returns a modified copy. Ledgers track a
// root's scripts, so copying on each change stays cheap.
type Ledger struct {
	entries map[string]time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: map[string]time.Time{}}
}

// LedgerFrom builds a ledger from a copy of entries.
func LedgerFrom(entries map[string]time.Time) *Ledger {
	l := &Ledger{entries: make(map[string]time.Time, len(entries))}
	for k, v := range entries {
		l.entries[k] = v
	}
	return l
}

// With returns a ledger with key recorded at ts. The last write wins.
func (l *Ledger) With(key string, ts time.Time) *Ledger {
	next := LedgerFrom(l.Entries())
	next.entries[key] = ts
	return next
}

// Timestamp returns the recorded time for key.
func (l *Ledger) Timestamp(key string) (time.Time, bool) {
	if l == nil {
		return time.Time{}, false
	}
	ts, ok := l.entries[key]
	return ts, ok
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Entries returns a copy of the entries.
func (l *Ledger) Entries() map[string]time.Time {
	out := make(map[string]time.Time, l.Len())
	if l == nil {
		return out
	}
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

// LatestExcept returns the newest timestamp among entries other than key.
func (l *Ledger) LatestExcept(key string) time.Time {
	var latest time.Time
	if l == nil {
		return latest
	}
	for k, ts := range l.entries {
		if k != key && ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// IsUpToDate reports whether key has no change newer than data.
//
// A key is up to date when it has no entry, or when its entry is no newer than
// the import timestamp and, if the model recorded one, its inputs timestamp.
func (l *Ledger) IsUpToDate(key string, data *BuildRootData) bool {
	ts, ok := l.Timestamp(key)
	if !ok {
		return true
	}
	if data == nil || ts.After(data.ImportTimestamp) {
		return false
	}
	if m, ok := data.Model(key); ok && !m.InputsTimestamp.IsZero() && ts.After(m.InputsTimestamp) {
		return false
	}
	return true
}
