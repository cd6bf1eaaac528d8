// Package roots tracks linked external build roots and the script
// configuration each of them currently holds.
//
// # Model
//
// A BuildRoot is one of three variants:
//
//   - *NotYetImported: linked, no data collected yet.
//   - *Unsupported: the build tool predates per-script models; scripts under it
//     are treated as standalone.
//   - *Imported: holds an immutable BuildRootData snapshot and a Ledger of files
//     changed since that snapshot.
//
// The Registry maps normalized path prefixes to roots and answers longest
// prefix lookups. Readers never lock: the registry publishes immutable
// snapshots and writers swap them under a mutex.
//
// # Transitions
//
// The Manager applies settings events (link, unlink, tool change) and import
// completions. Import results go through Reconcile, which replaces the root
// data, merges it with the previous snapshot when the import failed, or skips
// the update. Persistence happens before the registry commit, and
// notifications are sent after it.
//
// File changes are recorded in the covering root's Ledger. Ledgers are written
// to storage by a single-flight background flush.
package roots
