package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/nao1215/subprobe/internal/model"
	"gopkg.in/yaml.v3"
)

const (
	// LinksFileName is the conventional name of the share-link export.
	LinksFileName = "healthy.txt"

	// DocumentFileName is the conventional name of the proxy-list export.
	DocumentFileName = "healthy_clash.yaml"

	documentIndent = 2
)

type proxyDocument struct {
	Proxies []map[string]any `yaml:"proxies"`
}

// Render produces both exports of a CheckResult: the healthy share links,
// one per line, and a declarative document listing the healthy records
// under "proxies". Both hold the nodes verbatim, in probe order.
func Render(res *model.CheckResult) (links, document []byte, err error) {
	if res == nil {
		res = model.NewCheckResult(nil, nil)
	}

	links = Links(res.HealthyLinks)

	document, err = Document(res.HealthyRecords)
	if err != nil {
		return nil, nil, err
	}
	return links, document, nil
}

// Links joins share links with newlines. An empty list renders as an
// empty byte slice.
func Links(links []string) []byte {
	if len(links) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(links, "\n") + "\n")
}

// Document encodes records as a proxy-list document. An empty list
// renders as "proxies: []".
func Document(records []map[string]any) ([]byte, error) {
	doc := proxyDocument{Proxies: records}
	if doc.Proxies == nil {
		doc.Proxies = []map[string]any{}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(documentIndent)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode proxy document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode proxy document: %w", err)
	}
	return buf.Bytes(), nil
}
