package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Protocol identifies the wire protocol an outbound speaks.
type Protocol string

const (
	// ProtocolVMess is the V2Ray VMess protocol.
	ProtocolVMess Protocol = "vmess"

	// ProtocolShadowsocks is the Shadowsocks AEAD/stream protocol.
	ProtocolShadowsocks Protocol = "shadowsocks"

	// ProtocolVLESS is recognized but has no parser yet.
	ProtocolVLESS Protocol = "vless"

	// ProtocolTrojan is recognized but has no parser yet.
	ProtocolTrojan Protocol = "trojan"
)

// Supported reports whether nodes of this protocol can be parsed and probed.
func (p Protocol) Supported() bool {
	return p == ProtocolVMess || p == ProtocolShadowsocks
}

// Reserved reports whether the protocol is recognized but not implemented.
// Links of a reserved protocol are skipped and counted as unsupported
// rather than malformed.
func (p Protocol) Reserved() bool {
	return p == ProtocolVLESS || p == ProtocolTrojan
}

// String returns the protocol name as used in engine configurations.
func (p Protocol) String() string {
	return string(p)
}

// Outbound is the protocol-specific half of a Node.
//
// The set of implementations is closed: the unexported method keeps other
// packages from adding variants, so every consumer can switch exhaustively
// over VMessOutbound, ShadowsocksOutbound and RecordOutbound.
type Outbound interface {
	// Protocol returns the wire protocol of the outbound.
	Protocol() Protocol

	// Endpoint returns the remote server host and port.
	Endpoint() (server string, port int)

	// Validate checks the variant's required fields.
	Validate() error

	// writeFingerprint appends the identity-bearing fields used for
	// deduplication.
	writeFingerprint(sb *strings.Builder)
}

// TLSOptions enables TLS on top of the outbound transport.
type TLSOptions struct {
	// ServerName is the SNI sent during the handshake.
	ServerName string
}

// WebSocketTransport tunnels the outbound through a websocket connection.
type WebSocketTransport struct {
	// Path is the HTTP request path of the websocket upgrade. Never empty.
	Path string

	// Host is the optional Host header of the upgrade request.
	Host string
}

// VMessOutbound holds the connection parameters of a VMess server.
type VMessOutbound struct {
	Server     string
	ServerPort int
	UUID       string

	// Security is the VMess body cipher, lower-cased ("auto" by default).
	Security string

	// AlterID is the legacy alterId; 0 selects AEAD headers.
	AlterID int

	// TLS is nil when the server is reached in cleartext.
	TLS *TLSOptions

	// Transport is nil for plain TCP.
	Transport *WebSocketTransport
}

// Protocol implements Outbound.
func (o VMessOutbound) Protocol() Protocol { return ProtocolVMess }

// Endpoint implements Outbound.
func (o VMessOutbound) Endpoint() (string, int) { return o.Server, o.ServerPort }

// Validate implements Outbound.
func (o VMessOutbound) Validate() error {
	if err := validateEndpoint(o.Server, o.ServerPort); err != nil {
		return err
	}
	if o.UUID == "" {
		return fmt.Errorf("%w: vmess uuid", ErrMissingCredential)
	}
	if o.Security == "" {
		return fmt.Errorf("%w: vmess security", ErrMissingMethod)
	}
	if o.AlterID < 0 {
		return fmt.Errorf("%w: negative alter id", ErrInvalidOutbound)
	}
	return nil
}

func (o VMessOutbound) writeFingerprint(sb *strings.Builder) {
	sb.WriteString(o.UUID)
}

// ShadowsocksOutbound holds the connection parameters of a Shadowsocks server.
type ShadowsocksOutbound struct {
	Server     string
	ServerPort int

	// Method is the normalized cipher name (for example "aes-256-gcm" or
	// "chacha20-ietf-poly1305").
	Method   string
	Password string

	// Plugin and PluginOpts carry a SIP003 plugin such as obfs-local.
	Plugin     string
	PluginOpts string
}

// Protocol implements Outbound.
func (o ShadowsocksOutbound) Protocol() Protocol { return ProtocolShadowsocks }

// Endpoint implements Outbound.
func (o ShadowsocksOutbound) Endpoint() (string, int) { return o.Server, o.ServerPort }

// Validate implements Outbound.
func (o ShadowsocksOutbound) Validate() error {
	if err := validateEndpoint(o.Server, o.ServerPort); err != nil {
		return err
	}
	if o.Method == "" {
		return fmt.Errorf("%w: shadowsocks method", ErrMissingMethod)
	}
	if o.Password == "" {
		return fmt.Errorf("%w: shadowsocks password", ErrMissingCredential)
	}
	return nil
}

func (o ShadowsocksOutbound) writeFingerprint(sb *strings.Builder) {
	sb.WriteString(o.Method)
	sb.WriteByte('|')
	sb.WriteString(o.Password)
}

// RecordOutbound is a declarative proxy record kept verbatim.
//
// Records whose type has no typed variant (or whose fields do not satisfy
// one) end up here. They are exported unchanged but cannot be expressed
// as engine outbounds.
type RecordOutbound struct {
	// Type is the record's own "type" field, possibly empty.
	Type string

	Server string

	// ServerPort is 0 when the record carries no port.
	ServerPort int

	// Fields is the verbatim record.
	Fields map[string]any
}

// Protocol implements Outbound. Known record types map onto the protocol
// constants; anything else is returned as written.
func (o RecordOutbound) Protocol() Protocol {
	switch strings.ToLower(o.Type) {
	case "ss", "shadowsocks":
		return ProtocolShadowsocks
	default:
		return Protocol(strings.ToLower(o.Type))
	}
}

// Endpoint implements Outbound.
func (o RecordOutbound) Endpoint() (string, int) { return o.Server, o.ServerPort }

// Validate implements Outbound. Only the server is mandatory; the port is
// checked when the record has one.
func (o RecordOutbound) Validate() error {
	if strings.TrimSpace(o.Server) == "" {
		return ErrEmptyServer
	}
	if o.ServerPort != 0 && (o.ServerPort < 1 || o.ServerPort > maxPort) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, o.ServerPort)
	}
	return nil
}

// recordCredentialKeys lists the record fields that identify an account.
var recordCredentialKeys = []string{"uuid", "password", "auth", "auth-str", "psk", "cipher", "username"}

func (o RecordOutbound) writeFingerprint(sb *strings.Builder) {
	keys := make([]string, 0, len(recordCredentialKeys))
	for _, k := range recordCredentialKeys {
		if _, ok := o.Fields[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(fmt.Sprint(o.Fields[k]))
	}
}

const maxPort = 65535

func validateEndpoint(server string, port int) error {
	if strings.TrimSpace(server) == "" {
		return ErrEmptyServer
	}
	if port < 1 || port > maxPort {
		return fmt.Errorf("%w: %s", ErrInvalidPort, strconv.Itoa(port))
	}
	return nil
}
