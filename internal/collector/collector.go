package collector

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/subprobe/internal/model"
	"github.com/nao1215/subprobe/internal/subscription"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetcher downloads one subscription body.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// SourceReport describes what one subscription contributed.
type SourceReport struct {
	URL string

	// Err is the fetch error; nil when the source was downloaded.
	Err error

	// Kind and Layers describe how the body was decoded.
	Kind   subscription.Kind
	Layers int

	// Stats counts parsed and skipped entries.
	Stats subscription.ParseStats

	// Elapsed is the download time.
	Elapsed time.Duration
}

// Collection is the deduplicated node set of one cycle.
type Collection struct {
	// Nodes in source order, then entry order, without duplicates.
	Nodes []model.Node

	// Sources holds one report per requested URL, in request order.
	Sources []SourceReport

	// Stats sums the parse stats of all sources.
	Stats subscription.ParseStats

	// Duplicates is the number of nodes dropped by deduplication.
	Duplicates int
}

// FailedSources returns the number of sources that could not be fetched.
func (c *Collection) FailedSources() int {
	return lo.CountBy(c.Sources, func(s SourceReport) bool { return s.Err != nil })
}

// Collector fetches subscriptions and turns them into Nodes.
type Collector struct {
	fetcher Fetcher
	logger  *slog.Logger

	// group merges concurrent downloads of the same URL.
	group singleflight.Group
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// New creates a Collector that downloads through fetcher.
func New(fetcher Fetcher, opts ...Option) *Collector {
	c := &Collector{fetcher: fetcher}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Collect fetches every source concurrently, decodes and parses the
// bodies, and deduplicates the nodes by fingerprint. The first occurrence
// of a node wins. A failing source is logged and contributes no nodes;
// only cancellation of ctx makes Collect fail.
func (c *Collector) Collect(ctx context.Context, urls []string) (*Collection, error) {
	reports := make([]SourceReport, len(urls))
	perSource := make([][]model.Node, len(urls))

	// One short request per source; sources are few compared to nodes.
	var g errgroup.Group
	for i, url := range urls {
		g.Go(func() error {
			reports[i], perSource[i] = c.collectSource(ctx, url)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never fail

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collection := &Collection{Sources: reports}
	all := make([]model.Node, 0)
	for i := range urls {
		all = append(all, perSource[i]...)
		collection.Stats.Add(reports[i].Stats)
	}

	collection.Nodes = lo.UniqBy(all, func(n model.Node) string {
		return n.Fingerprint()
	})
	collection.Duplicates = len(all) - len(collection.Nodes)

	c.logger.Info("collected nodes",
		"sources", len(urls),
		"failed_sources", collection.FailedSources(),
		"nodes", len(collection.Nodes),
		"duplicates", collection.Duplicates,
		"unsupported", collection.Stats.Unsupported,
		"malformed", collection.Stats.Malformed,
	)

	return collection, nil
}

func (c *Collector) collectSource(ctx context.Context, url string) (SourceReport, []model.Node) {
	report := SourceReport{URL: url}
	start := time.Now()

	v, err, shared := c.group.Do(url, func() (any, error) {
		return c.fetcher.Fetch(ctx, url)
	})
	report.Elapsed = time.Since(start)
	if err != nil {
		report.Err = err
		c.logger.Warn("subscription fetch failed", "url", url, "error", err)
		return report, nil
	}

	body, _ := v.(string) //nolint:errcheck // Fetch returns string
	payload := subscription.Decode(body)
	report.Kind = payload.Kind
	report.Layers = payload.Layers

	nodes, stats, skipped := subscription.ParsePayload(payload)
	report.Stats = stats

	for _, perr := range skipped {
		c.logger.Debug("skipped subscription entry",
			"url", url,
			"scheme", perr.Scheme,
			"reason", perr.Reason,
			"error", perr.Err,
		)
	}

	c.logger.Debug("subscription decoded",
		"url", url,
		"kind", payload.Kind,
		"layers", payload.Layers,
		"parsed", stats.Parsed,
		"skipped", stats.Skipped(),
		"shared_fetch", shared,
	)

	return report, nodes
}
