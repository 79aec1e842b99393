package subscription

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/subprobe/internal/model"
)

const ssScheme = "ss"

// methodAliases maps legacy cipher names to the names the engine accepts.
var methodAliases = map[string]string{
	"chacha20-poly1305": "chacha20-ietf-poly1305",
	"chacha20":          "chacha20-ietf",
}

// normalizeMethod lower-cases a Shadowsocks cipher and resolves aliases.
func normalizeMethod(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	if alias, ok := methodAliases[method]; ok {
		return alias
	}
	return method
}

// parseShadowsocks handles the three credential encodings:
//
//	ss://method:password@host:port#name          (cleartext user-info)
//	ss://BASE64(method:password)@host:port#name  (SIP002)
//	ss://BASE64(method:password@host:port)#name  (legacy)
//
// SIP002 plugin parameters in the query are carried over.
func parseShadowsocks(link string) (model.Node, error) {
	rest := link[len(prefixSS):]
	rest, fragment, _ := strings.Cut(rest, "#")
	rest, query, _ := strings.Cut(rest, "?")
	rest = strings.TrimSuffix(rest, "/")

	name, err := url.PathUnescape(fragment)
	if err != nil {
		name = fragment
	}

	var userinfo, hostport string
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		userinfo, hostport = rest[:at], rest[at+1:]
		if strings.Contains(userinfo, ":") {
			if unescaped, err := url.PathUnescape(userinfo); err == nil {
				userinfo = unescaped
			}
		} else {
			decoded, err := decodeBase64(userinfo)
			if err != nil {
				return model.Node{}, malformed(ssScheme, link, fmt.Errorf("decode user info: %w", err))
			}
			userinfo = string(decoded)
		}
	} else {
		decoded, err := decodeBase64(rest)
		if err != nil {
			return model.Node{}, malformed(ssScheme, link, fmt.Errorf("decode body: %w", err))
		}
		at := strings.LastIndex(string(decoded), "@")
		if at < 0 {
			return model.Node{}, malformed(ssScheme, link, errors.New("missing '@' in decoded body"))
		}
		userinfo, hostport = string(decoded[:at]), string(decoded[at+1:])
	}

	method, password, ok := strings.Cut(userinfo, ":")
	if !ok {
		return model.Node{}, malformed(ssScheme, link, errors.New("user info is not method:password"))
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return model.Node{}, malformed(ssScheme, link, err)
	}

	outbound := model.ShadowsocksOutbound{
		Server:     host,
		ServerPort: port,
		Method:     normalizeMethod(method),
		Password:   password,
	}
	outbound.Plugin, outbound.PluginOpts = parsePlugin(query)

	node, err := model.NewNode(model.SanitizeTag(name, ssScheme), outbound, model.LinkOrigin(link))
	if err != nil {
		return model.Node{}, malformed(ssScheme, link, err)
	}
	return node, nil
}

// splitHostPort splits "host:port" at the last colon. IPv6 hosts may be
// bracketed or bare.
func splitHostPort(hostport string) (string, int, error) {
	hostport = strings.TrimSuffix(strings.TrimSpace(hostport), "/")

	host, portText, err := net.SplitHostPort(hostport)
	if err != nil {
		i := strings.LastIndex(hostport, ":")
		if i < 0 {
			return "", 0, fmt.Errorf("host and port %q: %w", hostport, err)
		}
		host = strings.TrimSuffix(strings.TrimPrefix(hostport[:i], "["), "]")
		portText = hostport[i+1:]
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", portText, err)
	}
	if host == "" {
		return "", 0, model.ErrEmptyServer
	}
	return host, port, nil
}

// parsePlugin reads the SIP002 "plugin" query value, for example
// "obfs-local;obfs=http;obfs-host=example.com".
func parsePlugin(query string) (string, string) {
	if query == "" {
		return "", ""
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", ""
	}
	plugin, opts, _ := strings.Cut(values.Get("plugin"), ";")
	return plugin, opts
}
