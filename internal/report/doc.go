// Package report writes the summary of a probe cycle.
//
// A Summary is built from the collection and the probe result of one
// cycle. Writers render it as plain text for the terminal, Markdown with
// a mermaid pie chart of probe outcomes, or JSON for other tools.
// MultiWriter sends one summary to several writers.
package report
