// Package render turns a probe result back into the two export forms: a
// newline-separated share-link list and a YAML proxy-list document.
package render
