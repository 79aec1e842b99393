package engine

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/nao1215/subprobe/internal/model"
)

// ConfigFileName is the name of the configuration file written for the
// engine process.
const ConfigFileName = "config.json"

// ControlListener is the address the engine's control API listens on.
type ControlListener struct {
	Host string
	Port int
}

// Validate checks that the listener can be used as an address.
func (l ControlListener) Validate() error {
	if l.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidListener)
	}
	if l.Port < 1 || l.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidListener, l.Port)
	}
	return nil
}

// Addr returns the listener in host:port form.
func (l ControlListener) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// URL returns the base URL of the control API.
func (l ControlListener) URL() string {
	return "http://" + l.Addr()
}

// Config is the engine configuration of one probe cycle.
type Config struct {
	// Listener is where the control API will listen.
	Listener ControlListener

	// Identifiers holds the unique outbound identifier of every node, in
	// node order.
	Identifiers []string

	// Probeable tells, per node, whether the node was written as an engine
	// outbound. Record passthrough nodes are not.
	Probeable []bool

	doc document
}

// Outbounds returns the number of outbounds in the configuration.
func (c *Config) Outbounds() int {
	return len(c.doc.Outbounds)
}

// Marshal encodes the configuration in the engine's JSON format.
func (c *Config) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c.doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode engine config: %w", err)
	}
	return append(data, '\n'), nil
}

type document struct {
	Log          logOptions   `json:"log"`
	Outbounds    []any        `json:"outbounds"`
	Experimental experimental `json:"experimental"`
}

type logOptions struct {
	Level     string `json:"level"`
	Timestamp bool   `json:"timestamp"`
}

type experimental struct {
	ClashAPI clashAPI `json:"clash_api"`
}

type clashAPI struct {
	ExternalController string `json:"external_controller"`
}

type tlsOptions struct {
	Enabled    bool   `json:"enabled"`
	ServerName string `json:"server_name,omitempty"`
}

type transportOptions struct {
	Type    string            `json:"type"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
}

type vmessOutbound struct {
	Type       string            `json:"type"`
	Tag        string            `json:"tag"`
	Server     string            `json:"server"`
	ServerPort int               `json:"server_port"`
	UUID       string            `json:"uuid"`
	Security   string            `json:"security"`
	AlterID    int               `json:"alter_id"`
	TLS        *tlsOptions       `json:"tls,omitempty"`
	Transport  *transportOptions `json:"transport,omitempty"`
}

type shadowsocksOutbound struct {
	Type       string `json:"type"`
	Tag        string `json:"tag"`
	Server     string `json:"server"`
	ServerPort int    `json:"server_port"`
	Method     string `json:"method"`
	Password   string `json:"password"`
	Plugin     string `json:"plugin,omitempty"`
	PluginOpts string `json:"plugin_opts,omitempty"`
}

// BuildConfig assigns every node a unique outbound identifier and builds
// the engine configuration. Identifiers are seeded from the node tag; a
// tag seen before, or one naming a group the control API synthesizes,
// gets "-2", "-3", ... appended in node order. The result depends only on
// the node order.
func BuildConfig(nodes []model.Node, listener ControlListener) (*Config, error) {
	if err := listener.Validate(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Listener:    listener,
		Identifiers: make([]string, len(nodes)),
		Probeable:   make([]bool, len(nodes)),
		doc: document{
			Log:       logOptions{Level: "warn"},
			Outbounds: make([]any, 0, len(nodes)),
			Experimental: experimental{
				ClashAPI: clashAPI{ExternalController: listener.Addr()},
			},
		},
	}

	used := make(map[string]struct{}, len(nodes)+len(reservedIdentifiers))
	for _, name := range reservedIdentifiers {
		used[name] = struct{}{}
	}
	for i, node := range nodes {
		if node.Outbound == nil {
			return nil, fmt.Errorf("node %d (%s): %w", i, node.Tag, model.ErrNilOutbound)
		}

		id := uniqueIdentifier(node.Tag, used)
		cfg.Identifiers[i] = id

		outbound, ok := toOutbound(id, node.Outbound)
		if !ok {
			continue
		}
		cfg.Probeable[i] = true
		cfg.doc.Outbounds = append(cfg.doc.Outbounds, outbound)
	}

	return cfg, nil
}

// reservedIdentifiers are proxy names the clash API already serves.
var reservedIdentifiers = []string{"GLOBAL"}

func uniqueIdentifier(tag string, used map[string]struct{}) string {
	id := tag
	for n := 2; ; n++ {
		if _, taken := used[id]; !taken {
			break
		}
		id = tag + "-" + strconv.Itoa(n)
	}
	used[id] = struct{}{}
	return id
}

func toOutbound(id string, o model.Outbound) (any, bool) {
	switch v := o.(type) {
	case model.VMessOutbound:
		out := vmessOutbound{
			Type:       "vmess",
			Tag:        id,
			Server:     v.Server,
			ServerPort: v.ServerPort,
			UUID:       v.UUID,
			Security:   v.Security,
			AlterID:    v.AlterID,
		}
		if v.TLS != nil {
			out.TLS = &tlsOptions{Enabled: true, ServerName: v.TLS.ServerName}
		}
		if v.Transport != nil {
			out.Transport = &transportOptions{Type: "ws", Path: v.Transport.Path}
			if v.Transport.Host != "" {
				out.Transport.Headers = map[string]string{"Host": v.Transport.Host}
			}
		}
		return out, true
	case model.ShadowsocksOutbound:
		return shadowsocksOutbound{
			Type:       "shadowsocks",
			Tag:        id,
			Server:     v.Server,
			ServerPort: v.ServerPort,
			Method:     v.Method,
			Password:   v.Password,
			Plugin:     v.Plugin,
			PluginOpts: v.PluginOpts,
		}, true
	default:
		return nil, false
	}
}
