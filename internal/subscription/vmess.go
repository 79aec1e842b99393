package subscription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/subprobe/internal/model"
	"github.com/samber/lo"
)

const vmessScheme = "vmess"

// looseString accepts JSON strings, numbers and booleans. Share links in
// the wild write "port": 443 and "port": "443" interchangeably.
type looseString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = looseString(str)
		return nil
	}
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return fmt.Errorf("unexpected JSON value %s", data)
	}
	*s = looseString(data)
	return nil
}

func (s looseString) trimmed() string {
	return strings.TrimSpace(string(s))
}

// vmessLink is the JSON object inside a vmess:// link.
type vmessLink struct {
	PS   looseString `json:"ps"`
	Add  looseString `json:"add"`
	Port looseString `json:"port"`
	ID   looseString `json:"id"`
	Aid  looseString `json:"aid"`
	Scy  looseString `json:"scy"`
	Net  looseString `json:"net"`
	Host looseString `json:"host"`
	Path looseString `json:"path"`
	TLS  looseString `json:"tls"`
	SNI  looseString `json:"sni"`
}

// tlsTruthy lists the spellings of an enabled tls field.
var tlsTruthy = map[string]bool{"tls": true, "1": true, "true": true}

func parseVMess(link string) (model.Node, error) {
	body := link[len(prefixVMess):]
	body, _, _ = strings.Cut(body, "#")

	raw, err := decodeBase64(body)
	if err != nil {
		return model.Node{}, malformed(vmessScheme, link, fmt.Errorf("decode base64: %w", err))
	}

	var v vmessLink
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.Node{}, malformed(vmessScheme, link, fmt.Errorf("decode json: %w", err))
	}

	port, err := strconv.Atoi(v.Port.trimmed())
	if err != nil {
		return model.Node{}, malformed(vmessScheme, link, fmt.Errorf("port %q: %w", v.Port, err))
	}

	// A broken aid never invalidates the link; 0 selects AEAD headers.
	alterID, _ := strconv.Atoi(v.Aid.trimmed()) //nolint:errcheck // defaults to 0

	outbound := model.VMessOutbound{
		Server:     v.Add.trimmed(),
		ServerPort: port,
		UUID:       v.ID.trimmed(),
		Security:   strings.ToLower(lo.CoalesceOrEmpty(v.Scy.trimmed(), "auto")),
		AlterID:    alterID,
	}

	if tlsTruthy[strings.ToLower(v.TLS.trimmed())] {
		outbound.TLS = &model.TLSOptions{
			ServerName: lo.CoalesceOrEmpty(v.SNI.trimmed(), v.Host.trimmed(), v.Add.trimmed()),
		}
	}

	if strings.ToLower(lo.CoalesceOrEmpty(v.Net.trimmed(), "tcp")) == "ws" {
		outbound.Transport = &model.WebSocketTransport{
			Path: lo.CoalesceOrEmpty(v.Path.trimmed(), "/"),
			Host: v.Host.trimmed(),
		}
	}

	node, err := model.NewNode(model.SanitizeTag(string(v.PS), vmessScheme), outbound, model.LinkOrigin(link))
	if err != nil {
		return model.Node{}, malformed(vmessScheme, link, err)
	}
	return node, nil
}
