// Package collector gathers the Nodes of one probe cycle from a list of
// subscription URLs.
//
// Each source is downloaded concurrently, decoded with the subscription
// package and parsed into Nodes. Nodes that describe the same server
// account (same protocol, endpoint and credentials) are collapsed to the
// first occurrence, whatever their tags. Duplicate tags are left alone;
// the engine configuration gives every node a unique identifier.
package collector
