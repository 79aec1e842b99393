// Package model defines the data shared by the probe cycle: Nodes and
// their protocol-specific Outbounds, per-node ProbeOutcomes, and the
// CheckResult that carries the healthy nodes to the renderer.
//
// Outbound is a closed set of variants. VMessOutbound and
// ShadowsocksOutbound can be expressed as engine outbounds;
// RecordOutbound keeps a declarative record that has no typed mapping.
package model
