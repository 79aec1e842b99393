package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs the summary as JSON for tool integration.
//
// Each Write emits one complete document, so watch mode produces a stream
// of newline-delimited summaries that can be piped into jq. Durations are
// encoded as integer nanoseconds and empty error fields are omitted.
type JSONWriter struct {
	baseWriter

	// indent switches from compact to indented output.
	indent bool
	// indentPrefix and indentString are passed to json.MarshalIndent.
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables indented output with the given prefix and indent.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the summary as one JSON document followed by a newline.
func (w *JSONWriter) Write(s *Summary) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(s, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(s)
	}
	if err != nil {
		return 0, err
	}

	return w.output.Write(append(data, '\n'))
}
