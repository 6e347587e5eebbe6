// Package session provides SessionStore implementations and thread-tree
// helpers (lineage walk, subtree usage rollup, export) over the lineage model
// defined in core. The in-memory store suits tests and ephemeral runtimes;
// the sqlite subpackage persists across restarts.
package session
