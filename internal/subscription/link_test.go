package subscription

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/subprobe/internal/model"
)

func vmessShareLink(t *testing.T, fields map[string]any) string {
	t.Helper()

	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal vmess fields: %v", err)
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(data)
}

// TestParseLinkShadowsocksScenario tests the canonical SIP002 example.
func TestParseLinkShadowsocksScenario(t *testing.T) {
	t.Parallel()

	node, err := ParseLink("ss://YWVzLTI1Ni1nY206cGFzcw==@example.com:8388#MyNode")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if node.Tag != "MyNode" {
		t.Errorf("expected tag MyNode, got %q", node.Tag)
	}
	want := model.ShadowsocksOutbound{
		Server:     "example.com",
		ServerPort: 8388,
		Method:     "aes-256-gcm",
		Password:   "pass",
	}
	if !reflect.DeepEqual(node.Outbound, want) {
		t.Errorf("expected %+v, got %+v", want, node.Outbound)
	}
	if node.Outbound.Protocol() != model.ProtocolShadowsocks {
		t.Errorf("expected shadowsocks, got %s", node.Outbound.Protocol())
	}
	if !node.Origin.IsLink() {
		t.Error("expected link origin")
	}
}

// TestParseLinkShadowsocksEncodings tests that the three credential
// encodings produce the same node.
func TestParseLinkShadowsocksEncodings(t *testing.T) {
	t.Parallel()

	links := map[string]string{
		"cleartext user info": "ss://aes-256-gcm:pass@example.com:8388#MyNode",
		"encoded user info":   "ss://YWVzLTI1Ni1nY206cGFzcw==@example.com:8388#MyNode",
		"unpadded user info":  "ss://YWVzLTI1Ni1nY206cGFzcw@example.com:8388#MyNode",
		"fully encoded body":  "ss://YWVzLTI1Ni1nY206cGFzc0BleGFtcGxlLmNvbTo4Mzg4#MyNode",
		"trailing slash":      "ss://YWVzLTI1Ni1nY206cGFzcw==@example.com:8388/#MyNode",
	}

	var reference model.Node
	first := true
	for name, link := range links {
		node, err := ParseLink(link)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if first {
			reference, first = node, false
			continue
		}
		if node.Tag != reference.Tag || !reflect.DeepEqual(node.Outbound, reference.Outbound) {
			t.Errorf("%s: expected %+v, got %+v", name, reference.Outbound, node.Outbound)
		}
	}
}

// TestParseLinkShadowsocks tests shadowsocks edge cases.
func TestParseLinkShadowsocks(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		link    string
		want    model.ShadowsocksOutbound
		wantTag string
		wantErr error
	}{
		{
			name:    "chacha20-poly1305 alias",
			link:    "ss://chacha20-poly1305:pw@1.2.3.4:443#n",
			want:    model.ShadowsocksOutbound{Server: "1.2.3.4", ServerPort: 443, Method: "chacha20-ietf-poly1305", Password: "pw"},
			wantTag: "n",
		},
		{
			name:    "chacha20 alias",
			link:    "ss://CHACHA20:pw@1.2.3.4:443",
			want:    model.ShadowsocksOutbound{Server: "1.2.3.4", ServerPort: 443, Method: "chacha20-ietf", Password: "pw"},
			wantTag: "ss",
		},
		{
			name:    "upper-case method",
			link:    "ss://AES-128-GCM:pw@1.2.3.4:443#n",
			want:    model.ShadowsocksOutbound{Server: "1.2.3.4", ServerPort: 443, Method: "aes-128-gcm", Password: "pw"},
			wantTag: "n",
		},
		{
			name:    "password containing at sign",
			link:    "ss://aes-256-gcm:p@ss@example.com:8388#n",
			want:    model.ShadowsocksOutbound{Server: "example.com", ServerPort: 8388, Method: "aes-256-gcm", Password: "p@ss"},
			wantTag: "n",
		},
		{
			name:    "escaped fragment",
			link:    "ss://aes-256-gcm:pw@example.com:8388#Hong%20Kong%20%F0%9F%87%AD%F0%9F%87%B0",
			want:    model.ShadowsocksOutbound{Server: "example.com", ServerPort: 8388, Method: "aes-256-gcm", Password: "pw"},
			wantTag: "Hong Kong 🇭🇰",
		},
		{
			name:    "ipv6 host",
			link:    "ss://aes-256-gcm:pw@[2001:db8::1]:8388#v6",
			want:    model.ShadowsocksOutbound{Server: "2001:db8::1", ServerPort: 8388, Method: "aes-256-gcm", Password: "pw"},
			wantTag: "v6",
		},
		{
			name:    "bare ipv6 host",
			link:    "ss://aes-256-gcm:pw@2001:db8::1:8388#v6",
			want:    model.ShadowsocksOutbound{Server: "2001:db8::1", ServerPort: 8388, Method: "aes-256-gcm", Password: "pw"},
			wantTag: "v6",
		},
		{
			name:    "legacy encoded bare ipv6 host",
			link:    "ss://" + base64.StdEncoding.EncodeToString([]byte("aes-256-gcm:pass@2001:db8::1:8388")) + "#v6",
			want:    model.ShadowsocksOutbound{Server: "2001:db8::1", ServerPort: 8388, Method: "aes-256-gcm", Password: "pass"},
			wantTag: "v6",
		},
		{
			name: "plugin",
			link: "ss://YWVzLTI1Ni1nY206cGFzcw==@example.com:8388/?plugin=obfs-local%3Bobfs%3Dhttp%3Bobfs-host%3Dcdn.example.com#p",
			want: model.ShadowsocksOutbound{
				Server: "example.com", ServerPort: 8388, Method: "aes-256-gcm", Password: "pass",
				Plugin: "obfs-local", PluginOpts: "obfs=http;obfs-host=cdn.example.com",
			},
			wantTag: "p",
		},
		{name: "empty password", link: "ss://aes-256-gcm:@example.com:8388#n", wantErr: model.ErrMissingCredential},
		{name: "missing port", link: "ss://aes-256-gcm:pw@example.com#n", wantErr: ErrMalformed},
		{name: "port out of range", link: "ss://aes-256-gcm:pw@example.com:70000#n", wantErr: model.ErrInvalidPort},
		{name: "bad base64 body", link: "ss://!!!#n", wantErr: ErrMalformed},
		{name: "decoded body without at sign", link: "ss://" + base64.StdEncoding.EncodeToString([]byte("aes-256-gcm:pw")) + "#n", wantErr: ErrMalformed},
		{name: "user info without colon", link: "ss://" + base64.StdEncoding.EncodeToString([]byte("nocolon")) + "@example.com:1#n", wantErr: ErrMalformed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			node, err := ParseLink(tc.link)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("expected malformed skip reason, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(node.Outbound, tc.want) {
				t.Errorf("expected %+v, got %+v", tc.want, node.Outbound)
			}
			if node.Tag != tc.wantTag {
				t.Errorf("expected tag %q, got %q", tc.wantTag, node.Tag)
			}
		})
	}
}

// TestParseLinkVMessRoundTrip tests that server, port and id survive
// encoding and parsing for a range of inputs.
func TestParseLinkVMessRoundTrip(t *testing.T) {
	t.Parallel()

	records := []map[string]any{
		{"v": "2", "ps": "a", "add": "1.2.3.4", "port": "443", "id": "b831381d-6324-4d53-ad4f-8cda48b30811"},
		{"v": "2", "ps": "b", "add": "vm.example.com", "port": 8443, "id": "27848739-7e62-4138-9fd3-098a63964b6b", "aid": 64},
		{"ps": "c", "add": "2001:db8::2", "port": "1", "id": "x"},
		{"ps": "d", "add": "edge.example.net", "port": 65535, "id": "y", "net": "ws", "path": "/ray", "tls": "tls"},
	}

	for _, record := range records {
		t.Run(record["ps"].(string), func(t *testing.T) {
			t.Parallel()

			node, err := ParseLink(vmessShareLink(t, record))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			vm, ok := node.Outbound.(model.VMessOutbound)
			if !ok {
				t.Fatalf("expected VMessOutbound, got %T", node.Outbound)
			}
			server, port := vm.Endpoint()
			if server != record["add"] {
				t.Errorf("server: expected %v, got %s", record["add"], server)
			}
			if want := toInt(t, record["port"]); port != want {
				t.Errorf("port: expected %d, got %d", want, port)
			}
			if vm.UUID != record["id"] {
				t.Errorf("uuid: expected %v, got %s", record["id"], vm.UUID)
			}
		})
	}
}

func toInt(t *testing.T, v any) int {
	t.Helper()

	switch n := v.(type) {
	case int:
		return n
	case string:
		var out int
		for _, c := range n {
			out = out*10 + int(c-'0')
		}
		return out
	default:
		t.Fatalf("unexpected port type %T", v)
		return 0
	}
}

// TestParseLinkVMess tests vmess field defaults and overlays.
func TestParseLinkVMess(t *testing.T) {
	t.Parallel()

	const id = "b831381d-6324-4d53-ad4f-8cda48b30811"

	testCases := []struct {
		name    string
		fields  map[string]any
		want    model.VMessOutbound
		wantTag string
	}{
		{
			name:    "defaults",
			fields:  map[string]any{"add": "h", "port": "443", "id": id},
			want:    model.VMessOutbound{Server: "h", ServerPort: 443, UUID: id, Security: "auto"},
			wantTag: "vmess",
		},
		{
			name:    "security lower-cased",
			fields:  map[string]any{"ps": "n", "add": "h", "port": "443", "id": id, "scy": "AES-128-GCM"},
			want:    model.VMessOutbound{Server: "h", ServerPort: 443, UUID: id, Security: "aes-128-gcm"},
			wantTag: "n",
		},
		{
			name:   "tls uses sni first",
			fields: map[string]any{"ps": "n", "add": "h", "port": "443", "id": id, "tls": "tls", "sni": "sni.example", "host": "host.example"},
			want: model.VMessOutbound{
				Server: "h", ServerPort: 443, UUID: id, Security: "auto",
				TLS: &model.TLSOptions{ServerName: "sni.example"},
			},
			wantTag: "n",
		},
		{
			name:   "tls falls back to host",
			fields: map[string]any{"ps": "n", "add": "h", "port": "443", "id": id, "tls": "true", "host": "host.example"},
			want: model.VMessOutbound{
				Server: "h", ServerPort: 443, UUID: id, Security: "auto",
				TLS: &model.TLSOptions{ServerName: "host.example"},
			},
			wantTag: "n",
		},
		{
			name:   "tls falls back to address",
			fields: map[string]any{"ps": "n", "add": "h", "port": "443", "id": id, "tls": "1"},
			want: model.VMessOutbound{
				Server: "h", ServerPort: 443, UUID: id, Security: "auto",
				TLS: &model.TLSOptions{ServerName: "h"},
			},
			wantTag: "n",
		},
		{
			name:    "tls none",
			fields:  map[string]any{"ps": "n", "add": "h", "port": "443", "id": id, "tls": "none"},
			want:    model.VMessOutbound{Server: "h", ServerPort: 443, UUID: id, Security: "auto"},
			wantTag: "n",
		},
		{
			name:   "websocket with default path",
			fields: map[string]any{"ps": "n", "add": "h", "port": "80", "id": id, "net": "ws"},
			want: model.VMessOutbound{
				Server: "h", ServerPort: 80, UUID: id, Security: "auto",
				Transport: &model.WebSocketTransport{Path: "/"},
			},
			wantTag: "n",
		},
		{
			name:   "websocket with path and host",
			fields: map[string]any{"ps": "n", "add": "h", "port": "80", "id": id, "net": "WS", "path": "/ray", "host": "cdn.example"},
			want: model.VMessOutbound{
				Server: "h", ServerPort: 80, UUID: id, Security: "auto",
				Transport: &model.WebSocketTransport{Path: "/ray", Host: "cdn.example"},
			},
			wantTag: "n",
		},
		{
			name:    "numeric alter id",
			fields:  map[string]any{"ps": "n", "add": "h", "port": 443, "id": id, "aid": 2},
			want:    model.VMessOutbound{Server: "h", ServerPort: 443, UUID: id, Security: "auto", AlterID: 2},
			wantTag: "n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			node, err := ParseLink(vmessShareLink(t, tc.fields))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(node.Outbound, tc.want) {
				t.Errorf("expected %+v, got %+v", tc.want, node.Outbound)
			}
			if node.Tag != tc.wantTag {
				t.Errorf("expected tag %q, got %q", tc.wantTag, node.Tag)
			}
		})
	}
}

// TestParseLinkSkips tests that failures are classified, never raised.
func TestParseLinkSkips(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		link    string
		wantErr error
	}{
		{"vless", "vless://uuid@example.com:443?security=reality#x", ErrUnsupportedProtocol},
		{"trojan", "trojan://password@example.com:443#x", ErrUnsupportedProtocol},
		{"unknown scheme", "hysteria2://x@example.com:443", ErrMalformed},
		{"vmess bad base64", "vmess://!!!", ErrMalformed},
		{"vmess bad json", "vmess://" + base64.StdEncoding.EncodeToString([]byte("{not json")), ErrMalformed},
		{"vmess array json", "vmess://" + base64.StdEncoding.EncodeToString([]byte("[]")), ErrMalformed},
		{"vmess missing port", "vmess://" + base64.StdEncoding.EncodeToString([]byte(`{"add":"h","id":"x"}`)), ErrMalformed},
		{"vmess missing id", "vmess://" + base64.StdEncoding.EncodeToString([]byte(`{"add":"h","port":"1"}`)), ErrMalformed},
		{"vmess missing address", "vmess://" + base64.StdEncoding.EncodeToString([]byte(`{"port":"1","id":"x"}`)), ErrMalformed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseLink(tc.link)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
		})
	}
}

// TestParsePayloadStats tests that stats separate unsupported and malformed input.
func TestParsePayloadStats(t *testing.T) {
	t.Parallel()

	payload := Payload{
		Kind: KindLinks,
		Links: []string{
			testSSLink,
			"ss://aes-256-gcm:@example.com:8388#empty",
			"vless://uuid@example.com:443#x",
			"trojan://password@example.com:443#x",
			"vmess://%%%",
		},
	}

	nodes, stats, skipped := ParsePayload(payload)
	if len(nodes) != 1 {
		t.Errorf("expected 1 node, got %d", len(nodes))
	}
	want := ParseStats{Parsed: 1, Unsupported: 2, Malformed: 2}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}
	if stats.Skipped() != 4 || len(skipped) != 4 {
		t.Errorf("expected 4 skipped, got %d (%d errors)", stats.Skipped(), len(skipped))
	}
}
