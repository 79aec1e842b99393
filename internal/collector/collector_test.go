package collector

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nao1215/subprobe/internal/subscription"
)

type fakeFetcher struct {
	bodies map[string]string
	calls  atomic.Int32
	mu     sync.Mutex
	seen   map[string]int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	if f.seen == nil {
		f.seen = make(map[string]int)
	}
	f.seen[url]++
	f.mu.Unlock()

	body, ok := f.bodies[url]
	if !ok {
		return "", fmt.Errorf("fetch %s: %w", url, errors.New("connection refused"))
	}
	return body, nil
}

func ssLink(method, password, host string, port int, tag string) string {
	userinfo := base64.StdEncoding.EncodeToString([]byte(method + ":" + password))
	return fmt.Sprintf("ss://%s@%s:%d#%s", userinfo, host, port, tag)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("deduplicates nodes across sources keeping the first", func(t *testing.T) {
		t.Parallel()

		shared := ssLink("aes-256-gcm", "pw", "1.2.3.4", 8388, "first")
		sameAccount := ssLink("aes-256-gcm", "pw", "1.2.3.4", 8388, "second-name")
		other := ssLink("aes-128-gcm", "pw2", "5.6.7.8", 443, "other")

		fetcher := &fakeFetcher{bodies: map[string]string{
			"https://a.example/sub": shared + "\n" + other,
			"https://b.example/sub": base64.StdEncoding.EncodeToString([]byte(sameAccount)),
		}}
		c := New(fetcher, WithLogger(quietLogger()))

		got, err := c.Collect(context.Background(), []string{"https://a.example/sub", "https://b.example/sub"})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}

		if len(got.Nodes) != 2 {
			t.Fatalf("len(Nodes) = %d, want 2", len(got.Nodes))
		}
		if got.Nodes[0].Tag != "first" {
			t.Errorf("Nodes[0].Tag = %q, want first", got.Nodes[0].Tag)
		}
		if got.Nodes[1].Tag != "other" {
			t.Errorf("Nodes[1].Tag = %q, want other", got.Nodes[1].Tag)
		}
		if got.Duplicates != 1 {
			t.Errorf("Duplicates = %d, want 1", got.Duplicates)
		}
		if got.Sources[1].Kind != subscription.KindLinks || got.Sources[1].Layers != 1 {
			t.Errorf("Sources[1] = %+v, want links with one layer", got.Sources[1])
		}
	})

	t.Run("failing source contributes nothing", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{bodies: map[string]string{
			"https://ok.example/sub": ssLink("aes-256-gcm", "pw", "1.2.3.4", 8388, "A"),
		}}
		c := New(fetcher, WithLogger(quietLogger()))

		got, err := c.Collect(context.Background(), []string{"https://down.example/sub", "https://ok.example/sub"})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if len(got.Nodes) != 1 {
			t.Fatalf("len(Nodes) = %d, want 1", len(got.Nodes))
		}
		if got.FailedSources() != 1 {
			t.Errorf("FailedSources() = %d, want 1", got.FailedSources())
		}
		if got.Sources[0].Err == nil {
			t.Error("Sources[0].Err = nil, want fetch error")
		}
	})

	t.Run("keeps source order regardless of completion order", func(t *testing.T) {
		t.Parallel()

		bodies := make(map[string]string)
		urls := make([]string, 0, 8)
		for i := range 8 {
			url := fmt.Sprintf("https://s%d.example/sub", i)
			urls = append(urls, url)
			bodies[url] = ssLink("aes-256-gcm", "pw", fmt.Sprintf("10.0.0.%d", i+1), 8388, fmt.Sprintf("n%d", i))
		}
		c := New(&fakeFetcher{bodies: bodies}, WithLogger(quietLogger()))

		got, err := c.Collect(context.Background(), urls)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		for i, n := range got.Nodes {
			if want := fmt.Sprintf("n%d", i); n.Tag != want {
				t.Errorf("Nodes[%d].Tag = %q, want %q", i, n.Tag, want)
			}
		}
	})

	t.Run("sums parse stats", func(t *testing.T) {
		t.Parallel()

		body := strings.Join([]string{
			ssLink("aes-256-gcm", "pw", "1.2.3.4", 8388, "A"),
			"trojan://secret@host:443#T",
			"ss://broken",
		}, "\n")
		c := New(&fakeFetcher{bodies: map[string]string{"u": body}}, WithLogger(quietLogger()))

		got, err := c.Collect(context.Background(), []string{"u"})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if got.Stats.Parsed != 1 || got.Stats.Unsupported != 1 || got.Stats.Malformed != 1 {
			t.Errorf("Stats = %+v, want 1 parsed, 1 unsupported, 1 malformed", got.Stats)
		}
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := New(&fakeFetcher{}, WithLogger(quietLogger()))
		if _, err := c.Collect(ctx, []string{"u"}); !errors.Is(err, context.Canceled) {
			t.Errorf("Collect() error = %v, want context.Canceled", err)
		}
	})

	t.Run("empty source list", func(t *testing.T) {
		t.Parallel()

		got, err := New(&fakeFetcher{}, WithLogger(quietLogger())).Collect(context.Background(), nil)
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if got.Nodes == nil || len(got.Nodes) != 0 {
			t.Errorf("Nodes = %v, want empty non-nil slice", got.Nodes)
		}
	})
}
