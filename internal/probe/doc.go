// Package probe runs one probe cycle: it builds the engine configuration
// for a node set, starts an engine, tests every outbound through the
// engine's control API with bounded concurrency and stops the engine.
//
// Individual node failures never fail the cycle. An engine that does not
// start, or a control API that answers none of the delay requests, does:
// the caller sees an error instead of a cycle without healthy nodes.
package probe
