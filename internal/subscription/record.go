package subscription

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nao1215/subprobe/internal/model"
	"github.com/samber/lo"
)

const (
	recordScheme      = "record"
	recordPlaceholder = "proxy"
)

// ParseRecord turns one declarative proxy record into a Node.
//
// The record itself is the node's origin and is exported verbatim.
// Shadowsocks and VMess records are additionally mapped onto typed
// outbounds so the engine can probe them; other types are kept as
// RecordOutbound. As with ParseLink, the error is a *ParseError.
func ParseRecord(record map[string]any) (model.Node, error) {
	tag := model.SanitizeTag(stringField(record, "name"), recordPlaceholder)
	server := stringField(record, "server")

	port, err := intField(record, "port")
	if err != nil {
		return model.Node{}, malformed(recordScheme, tag, err)
	}

	var outbound model.Outbound
	switch recordType := stringField(record, "type"); strings.ToLower(recordType) {
	case "ss", "shadowsocks":
		outbound, err = shadowsocksFromRecord(record, server, port)
	case "vmess":
		outbound, err = vmessFromRecord(record, server, port)
	default:
		outbound = model.RecordOutbound{
			Type:       recordType,
			Server:     server,
			ServerPort: port,
			Fields:     record,
		}
	}
	if err != nil {
		return model.Node{}, malformed(recordScheme, tag, err)
	}

	node, err := model.NewNode(tag, outbound, model.RecordOrigin(record))
	if err != nil {
		return model.Node{}, malformed(recordScheme, tag, err)
	}
	return node, nil
}

func shadowsocksFromRecord(record map[string]any, server string, port int) (model.Outbound, error) {
	outbound := model.ShadowsocksOutbound{
		Server:     server,
		ServerPort: port,
		Method:     normalizeMethod(stringField(record, "cipher")),
		Password:   stringField(record, "password"),
	}

	switch plugin := stringField(record, "plugin"); plugin {
	case "":
	case "obfs":
		opts := mapField(record, "plugin-opts")
		outbound.Plugin = "obfs-local"
		outbound.PluginOpts = fmt.Sprintf("obfs=%s;obfs-host=%s",
			lo.CoalesceOrEmpty(stringField(opts, "mode"), "http"), stringField(opts, "host"))
	default:
		// The engine cannot be configured for this plugin; keep the record
		// exportable without probing a wrong configuration.
		return model.RecordOutbound{Type: "ss", Server: server, ServerPort: port, Fields: record}, nil
	}

	return outbound, nil
}

func vmessFromRecord(record map[string]any, server string, port int) (model.Outbound, error) {
	alterID, err := intField(record, "alterId")
	if err != nil {
		return nil, err
	}

	outbound := model.VMessOutbound{
		Server:     server,
		ServerPort: port,
		UUID:       stringField(record, "uuid"),
		Security:   strings.ToLower(lo.CoalesceOrEmpty(stringField(record, "cipher"), "auto")),
		AlterID:    alterID,
	}

	wsOpts := mapField(record, "ws-opts")
	wsHost := stringField(mapField(wsOpts, "headers"), "Host")

	if boolField(record, "tls") {
		outbound.TLS = &model.TLSOptions{
			ServerName: lo.CoalesceOrEmpty(stringField(record, "servername"), stringField(record, "sni"), wsHost, server),
		}
	}
	if strings.EqualFold(stringField(record, "network"), "ws") {
		outbound.Transport = &model.WebSocketTransport{
			Path: lo.CoalesceOrEmpty(stringField(wsOpts, "path"), "/"),
			Host: wsHost,
		}
	}

	return outbound, nil
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// intField reads an optional integer; a missing key yields 0.
func intField(m map[string]any, key string) (int, error) {
	switch v := m[key].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%s %q: %w", key, v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s has unexpected type %T", key, v)
	}
}

func boolField(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return tlsTruthy[strings.ToLower(strings.TrimSpace(v))]
	default:
		return false
	}
}

func mapField(m map[string]any, key string) map[string]any {
	if sub, ok := m[key].(map[string]any); ok {
		return sub
	}
	return map[string]any{}
}
