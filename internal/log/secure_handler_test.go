package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSecureHandler_SanitizesSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		key      string
		value    string
		wantMask bool
	}{
		{name: "password key is sanitized", key: "password", value: "hunter2", wantMask: true},
		{name: "Password key (uppercase) is sanitized", key: "Password", value: "hunter2", wantMask: true},
		{name: "uuid key is sanitized", key: "uuid", value: "not-a-real-uuid", wantMask: true},
		{name: "psk key is sanitized", key: "psk", value: "pre-shared", wantMask: true},
		{name: "auth-str key is sanitized", key: "auth-str", value: "hy-auth", wantMask: true},
		{name: "obfs-password contains keyword", key: "obfs-password", value: "obfs-secret", wantMask: true},
		{name: "authorization key is sanitized", key: "authorization", value: "xyz", wantMask: true},
		{name: "proxy-authorization key is sanitized", key: "proxy-authorization", value: "xyz", wantMask: true},
		{name: "access_token key is sanitized", key: "access_token", value: "abc", wantMask: true},
		{name: "server key is NOT sanitized", key: "server", value: "example.com", wantMask: false},
		{name: "tag key is NOT sanitized", key: "tag", value: "Tokyo 01", wantMask: false},
		{name: "port key is NOT sanitized", key: "port", value: "8388", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)

			logger.Info("test message", tt.key, tt.value)

			output := buf.String()

			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be masked, but found in output: %s", tt.value, output)
				}
				if !strings.Contains(output, MaskValue) {
					t.Errorf("expected mask value %q in output, but not found: %s", MaskValue, output)
				}
			} else if !strings.Contains(output, tt.value) {
				t.Errorf("expected value %q to be present in output, but not found: %s", tt.value, output)
			}
		})
	}
}

func TestSecureHandler_SanitizesSensitivePatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		wantMask bool
	}{
		{name: "vmess link", value: "vmess://eyJhZGQiOiJleGFtcGxlLmNvbSJ9", wantMask: true},
		{name: "ss link", value: "ss://YWVzLTI1Ni1nY206cGFzcw@1.2.3.4:8388#JP", wantMask: true},
		{name: "uppercase trojan link", value: "TROJAN://pass@example.com:443", wantMask: true},
		{name: "vless link", value: "vless://id@example.com:443?security=tls", wantMask: true},
		{name: "uuid value", value: "b831381d-6324-4d53-ad4f-8cda48b30811", wantMask: true},
		{name: "bearer token", value: "Bearer abc.def", wantMask: true},
		{name: "long opaque token", value: "a1b2c3d4e5f6a7b8c9d0a1b2c3d4e5f6a7b8", wantMask: true},
		{name: "hostname", value: "jp1.example.com", wantMask: false},
		{name: "plain text", value: "collected nodes", wantMask: false},
		{name: "http url without query", value: "https://example.com/sub", wantMask: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, true)

			logger.Info("test message", "value", tt.value)

			output := buf.String()
			if tt.wantMask {
				if strings.Contains(output, tt.value) {
					t.Errorf("expected value %q to be masked: %s", tt.value, output)
				}
			} else if !strings.Contains(output, tt.value) {
				t.Errorf("expected value %q to be present: %s", tt.value, output)
			}
		})
	}
}

func TestSecureHandler_RedactsSubscriptionURL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureJSONLogger(&buf, true)

	logger.Info("fetch failed", "url", "https://user:pw@sub.example.com/api/v1/client?token=deadbeef&flag=1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	got, ok := entry["url"].(string)
	if !ok {
		t.Fatalf("url attribute missing: %s", buf.String())
	}
	for _, leaked := range []string{"deadbeef", "pw@", "user:"} {
		if strings.Contains(got, leaked) {
			t.Errorf("url %q leaks %q", got, leaked)
		}
	}
	if !strings.Contains(got, "sub.example.com/api/v1/client") {
		t.Errorf("url %q lost its host or path", got)
	}
}

func TestSecureHandler_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		verbose   bool
		logFunc   func(*slog.Logger)
		wantEmpty bool
	}{
		{name: "debug hidden when not verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Debug("msg") }, wantEmpty: true},
		{name: "info hidden when not verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Info("msg") }, wantEmpty: true},
		{name: "warn shown when not verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Warn("msg") }, wantEmpty: false},
		{name: "error shown when not verbose", verbose: false, logFunc: func(l *slog.Logger) { l.Error("msg") }, wantEmpty: false},
		{name: "debug shown when verbose", verbose: true, logFunc: func(l *slog.Logger) { l.Debug("msg") }, wantEmpty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			tt.logFunc(NewSecureLogger(&buf, tt.verbose))

			if got := buf.Len() == 0; got != tt.wantEmpty {
				t.Errorf("empty output = %v, want %v: %q", got, tt.wantEmpty, buf.String())
			}
		})
	}
}

func TestSecureHandler_WithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true).With("password", "hunter2", "server", "example.com")

	logger.Info("probe")

	output := buf.String()
	if strings.Contains(output, "hunter2") {
		t.Errorf("password leaked via With: %s", output)
	}
	if !strings.Contains(output, "example.com") {
		t.Errorf("server missing: %s", output)
	}
}

func TestSecureHandler_WithGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, true)

	logger.Info("node", slog.Group("outbound",
		slog.String("type", "shadowsocks"),
		slog.String("password", "hunter2"),
		slog.String("link", "ss://YWVzOnB3@1.2.3.4:1"),
	))
	logger.WithGroup("engine").Info("started", "uuid", "abc")

	output := buf.String()
	for _, leaked := range []string{"hunter2", "ss://", "uuid=abc"} {
		if strings.Contains(output, leaked) {
			t.Errorf("grouped attribute leaked %q: %s", leaked, output)
		}
	}
	if !strings.Contains(output, "shadowsocks") {
		t.Errorf("non-sensitive grouped value missing: %s", output)
	}
}

func TestNewSecureHandler_NilHandler(t *testing.T) {
	t.Parallel()

	h := NewSecureHandler(nil)
	if h.handler == nil {
		t.Fatal("expected default handler, got nil")
	}
}

func TestContainsSensitiveKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want bool
	}{
		{key: "obfs-password", want: true},
		{key: "client_secret", want: true},
		{key: "sub_token", want: true},
		{key: "private-key", want: true},
		{key: "server", want: false},
		{key: "cipher", want: false},
	}
	for _, tt := range tests {
		if got := containsSensitiveKeyword(tt.key); got != tt.want {
			t.Errorf("containsSensitiveKeyword(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		wantOK bool
	}{
		{name: "query", in: "https://example.com/sub?token=x", wantOK: true},
		{name: "userinfo", in: "http://u:p@example.com/", wantOK: true},
		{name: "no credentials", in: "https://example.com/sub", wantOK: false},
		{name: "not http", in: "ftp://example.com/?a=b", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := redactURL(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("redactURL(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && !strings.Contains(got, "example.com") {
				t.Errorf("redactURL(%q) = %q, host lost", tt.in, got)
			}
		})
	}
}
