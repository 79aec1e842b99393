package model

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// MaxTagLength is the maximum tag length in runes.
const MaxTagLength = 64

// Origin is the verbatim source of a Node. Exactly one of Link and Record
// is set; it is re-exported unchanged instead of being re-serialized from
// the parsed outbound.
type Origin struct {
	// Link is the share link text, e.g. "ss://...#name".
	Link string

	// Record is the declarative proxy record as decoded from the document.
	Record map[string]any
}

// LinkOrigin returns an Origin for a share link.
func LinkOrigin(link string) Origin {
	return Origin{Link: link}
}

// RecordOrigin returns an Origin for a declarative proxy record.
func RecordOrigin(record map[string]any) Origin {
	return Origin{Record: record}
}

// IsLink reports whether the node came from a share link.
func (o Origin) IsLink() bool {
	return o.Link != "" && o.Record == nil
}

// IsRecord reports whether the node came from a declarative record.
func (o Origin) IsRecord() bool {
	return o.Record != nil && o.Link == ""
}

// Node is the canonical descriptor of one proxy server.
//
// Nodes are built through NewNode, which validates the outbound, and are
// never mutated afterwards. Tags are not unique; the engine configuration
// assigns unique identifiers separately.
type Node struct {
	Tag      string
	Outbound Outbound
	Origin   Origin
}

// NewNode validates its arguments and returns a Node.
func NewNode(tag string, outbound Outbound, origin Origin) (Node, error) {
	if tag == "" {
		return Node{}, ErrEmptyTag
	}
	if outbound == nil {
		return Node{}, ErrNilOutbound
	}
	if err := outbound.Validate(); err != nil {
		return Node{}, err
	}
	if origin.IsLink() == origin.IsRecord() {
		return Node{}, ErrInvalidOrigin
	}
	return Node{Tag: tag, Outbound: outbound, Origin: origin}, nil
}

// Fingerprint identifies the server account behind a node: protocol,
// server, port and the credential fields. Two nodes with different tags
// but the same fingerprint are duplicates.
func (n Node) Fingerprint() string {
	if n.Outbound == nil {
		return ""
	}

	server, port := n.Outbound.Endpoint()

	var sb strings.Builder
	sb.WriteString(n.Outbound.Protocol().String())
	sb.WriteByte('|')
	sb.WriteString(strings.ToLower(strings.TrimSpace(server)))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(port))
	sb.WriteByte('|')
	n.Outbound.writeFingerprint(&sb)

	sum := sha3.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// SanitizeTag normalizes a display name: NFC normalization, whitespace
// runs collapsed to one space, trimmed, and cut to MaxTagLength runes.
// An empty result is replaced by placeholder.
func SanitizeTag(tag, placeholder string) string {
	tag = strings.Join(strings.Fields(norm.NFC.String(tag)), " ")
	if tag == "" {
		return placeholder
	}
	if utf8.RuneCountInString(tag) > MaxTagLength {
		runes := []rune(tag)
		tag = strings.TrimSpace(string(runes[:MaxTagLength]))
	}
	return tag
}
