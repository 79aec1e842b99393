package subscription

import (
	"errors"
	"strings"

	"github.com/nao1215/subprobe/internal/model"
)

// ParseStats counts how the entries of a payload were handled.
type ParseStats struct {
	// Parsed is the number of entries that became Nodes.
	Parsed int

	// Unsupported is the number of recognized but unimplemented protocols.
	Unsupported int

	// Malformed is the number of entries that failed to decode or validate.
	Malformed int
}

// Add accumulates other into s.
func (s *ParseStats) Add(other ParseStats) {
	s.Parsed += other.Parsed
	s.Unsupported += other.Unsupported
	s.Malformed += other.Malformed
}

// Skipped returns the number of entries that did not become Nodes.
func (s ParseStats) Skipped() int {
	return s.Unsupported + s.Malformed
}

func (s *ParseStats) record(err error) {
	switch {
	case err == nil:
		s.Parsed++
	case errors.Is(err, ErrUnsupportedProtocol):
		s.Unsupported++
	default:
		s.Malformed++
	}
}

// ParseLink turns one share link into a Node.
//
// The error is always a *ParseError; use errors.Is with
// ErrUnsupportedProtocol or ErrMalformed to tell skip reasons apart.
func ParseLink(link string) (model.Node, error) {
	link = strings.TrimSpace(link)

	switch schemeOf(link) {
	case prefixVMess:
		return parseVMess(link)
	case prefixSS:
		return parseShadowsocks(link)
	case prefixVLESS:
		return model.Node{}, unsupported(string(model.ProtocolVLESS), link)
	case prefixTrojan:
		return model.Node{}, unsupported(string(model.ProtocolTrojan), link)
	default:
		return model.Node{}, malformed("link", link, errors.New("unknown scheme"))
	}
}

// ParsePayload parses every entry of p. Entries that fail are counted in
// the stats and returned as skipped, never aborting the rest.
func ParsePayload(p Payload) ([]model.Node, ParseStats, []*ParseError) {
	var (
		stats   ParseStats
		skipped []*ParseError
	)
	nodes := make([]model.Node, 0, len(p.Records)+len(p.Links))

	collect := func(node model.Node, err error) {
		stats.record(err)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				skipped = append(skipped, perr)
			}
			return
		}
		nodes = append(nodes, node)
	}

	for _, record := range p.Records {
		collect(ParseRecord(record))
	}
	for _, link := range p.Links {
		collect(ParseLink(link))
	}

	return nodes, stats, skipped
}
