package subscription

import (
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MaxDecodeDepth bounds how many base64 layers Decode unwraps.
const MaxDecodeDepth = 4

// MaxLinkLength is the longest line accepted as a share link.
const MaxLinkLength = 8192

// documentKey is the top-level key of a declarative proxy-list document.
const documentKey = "proxies"

// Share-link scheme prefixes. Only vmess and ss are parsed; vless and
// trojan are recognized so they can be reported as unsupported.
const (
	prefixVMess  = "vmess://"
	prefixVLESS  = "vless://"
	prefixTrojan = "trojan://"
	prefixSS     = "ss://"
)

var linkPrefixes = []string{prefixVMess, prefixVLESS, prefixTrojan, prefixSS}

// Kind tells which representation a Payload holds.
type Kind int

const (
	// KindUndetermined means no recognizable content was found.
	KindUndetermined Kind = iota

	// KindDocument means a declarative proxy-list document.
	KindDocument

	// KindLinks means a list of share links.
	KindLinks
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindLinks:
		return "links"
	default:
		return "undetermined"
	}
}

// Payload is the decoded content of one subscription body.
type Payload struct {
	Kind Kind

	// Records is set for KindDocument. Entries that were not mappings in
	// the source document are already discarded.
	Records []map[string]any

	// Links is set for KindLinks, one trimmed share link per element.
	Links []string

	// Layers counts the base64 layers that were unwrapped.
	Layers int
}

// Empty reports whether the payload carries nothing to parse.
func (p Payload) Empty() bool {
	return len(p.Records) == 0 && len(p.Links) == 0
}

// detector tries one interpretation of text. It returns false to let the
// next detector run; failures never propagate.
type detector func(text string, depth int) (Payload, bool)

// Decode classifies raw subscription text and decodes it.
//
// Detectors run in order: declarative document, base64 blob (recursing
// into the decoded text), newline-delimited share links. Empty or
// unrecognizable input yields an empty KindUndetermined payload.
//
// A leading byte order mark is dropped. Base64 layers nest at most
// MaxDecodeDepth deep; past that the text is treated as plain links.
// Decode never fails: a payload that fits no detector is simply empty,
// and the caller decides whether an empty source is worth reporting.
func Decode(raw string) Payload {
	return decode(raw, 0)
}

func decode(text string, depth int) Payload {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return Payload{Kind: KindUndetermined}
	}

	detectors := []detector{detectDocument, detectBase64, detectLinks}
	for _, detect := range detectors {
		if p, ok := detect(text, depth); ok {
			return p
		}
	}
	return Payload{Kind: KindUndetermined}
}

// hasDocumentMarker reports whether text looks like a proxy-list document:
// the proxies key at the start or on its own line, or a proxy-groups key
// anywhere.
func hasDocumentMarker(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, documentKey+":") ||
		strings.Contains(text, "\n"+documentKey+":") ||
		strings.Contains(text, "proxy-groups:")
}

func hasLinkPrefix(text string) bool {
	for _, prefix := range linkPrefixes {
		if strings.Contains(text, prefix) {
			return true
		}
	}
	return false
}

func detectDocument(text string, _ int) (Payload, bool) {
	if !hasDocumentMarker(text) {
		return Payload{}, false
	}

	var doc struct {
		Proxies []any `yaml:"proxies"`
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return Payload{}, false
	}

	records := make([]map[string]any, 0, len(doc.Proxies))
	for _, entry := range doc.Proxies {
		if record, ok := entry.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return Payload{Kind: KindDocument, Records: records}, true
}

func detectBase64(text string, depth int) (Payload, bool) {
	if depth >= MaxDecodeDepth {
		return Payload{}, false
	}

	decoded, err := decodeBase64(text)
	if err != nil || len(decoded) == 0 {
		return Payload{}, false
	}

	inner := string(decoded)
	if !utf8.ValidString(inner) {
		inner = strings.ToValidUTF8(inner, "")
	}
	// Syntactically valid base64 decodes to garbage all the time; only
	// recurse when the result looks like subscription content or like
	// another base64 layer.
	if !hasLinkPrefix(inner) && !hasDocumentMarker(inner) && !looksLikeBase64(inner) {
		return Payload{}, false
	}

	p := decode(inner, depth+1)
	if p.Kind == KindUndetermined {
		return Payload{}, false
	}
	p.Layers++
	return p, true
}

func detectLinks(text string, _ int) (Payload, bool) {
	links := make([]string, 0)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > MaxLinkLength {
			continue
		}
		if schemeOf(line) != "" {
			links = append(links, line)
		}
	}

	if len(links) == 0 {
		return Payload{}, false
	}
	return Payload{Kind: KindLinks, Links: links}, true
}

// looksLikeBase64 reports whether s consists only of base64 alphabet
// characters, padding and whitespace.
func looksLikeBase64(s string) bool {
	seen := false
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			seen = true
		case r == '+', r == '/', r == '-', r == '_', r == '=':
		case r == ' ', r == '\t', r == '\r', r == '\n':
		default:
			return false
		}
	}
	return seen
}

// schemeOf returns the recognized prefix of a share link, or "".
func schemeOf(link string) string {
	lower := strings.ToLower(link[:min(len(link), len(prefixTrojan))])
	for _, prefix := range linkPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return prefix
		}
	}
	return ""
}
