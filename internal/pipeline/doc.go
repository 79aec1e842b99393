// Package pipeline runs one probe cycle as a sequence of steps over a
// shared Cycle state: collect the subscriptions, probe the nodes, render
// the healthy ones and write the exports.
//
// The pipeline stops at the first failing step. A cycle that failed to
// probe therefore never overwrites the exports of an earlier cycle.
package pipeline
