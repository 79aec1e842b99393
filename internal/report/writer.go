package report

import (
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer writes a cycle summary in one output format.
type Writer interface {
	// Write outputs the summary and returns the number of bytes written.
	Write(s *Summary) (int, error)
}

// MultiWriter writes the same summary to several Writers, for example a
// text summary on the terminal and a JSON file next to the exports.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to every Writer and stops on the first error.
func (m *MultiWriter) Write(s *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(s)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var protocolNames = map[string]string{
	"vmess":       "VMess",
	"vless":       "VLESS",
	"ss":          "Shadowsocks",
	"shadowsocks": "Shadowsocks",
}

// displayProtocol returns the conventional spelling of a protocol name.
// Unknown record types are title-cased.
func displayProtocol(name string) string {
	if pretty, ok := protocolNames[strings.ToLower(name)]; ok {
		return pretty
	}
	if name == "" {
		return "Unknown"
	}
	return cases.Title(language.Und).String(name)
}

// truncateString shortens s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
