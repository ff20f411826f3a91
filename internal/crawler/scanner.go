package crawler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/metrics"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/registry"
)

// documentExtension marks links that are obviously notification documents
// even when their anchor text is garbage.
const documentExtension = ".pdf"

// Config controls scanner behavior.
type Config struct {
	// UserAgent is sent on every listing fetch. Many government sites reject
	// default Go client signatures, so this defaults to a browser identity.
	UserAgent string
	// Timeout bounds a single listing fetch.
	Timeout time.Duration
}

// Scanner fetches registered listing pages and extracts candidate references.
type Scanner struct {
	registry *registry.Registry
	client   *http.Client
	cfg      Config
	clock    Clock
	logger   *zap.Logger
}

// NewScanner builds a Scanner over the given source registry.
func NewScanner(reg *registry.Registry, cfg Config, clock Clock, logger *zap.Logger) *Scanner {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Scanner{
		registry: reg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newHTTPTransport(),
		},
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}
}

// ScanAll scans every registered source sequentially. One outstanding fetch
// at a time keeps outbound connection pressure bounded so no single target
// sees burst traffic. A failing source never aborts the remaining scans.
func (s *Scanner) ScanAll(ctx context.Context) []CandidateReference {
	seen := make(map[string]struct{})
	var out []CandidateReference
	for _, src := range s.registry.All() {
		for _, ref := range s.ScanSource(ctx, src) {
			if _, dup := seen[ref.URL]; dup {
				continue
			}
			seen[ref.URL] = struct{}{}
			out = append(out, ref)
		}
	}
	return out
}

// ScanSource fetches one source's listing page and returns the candidates it
// links to. Fetch and parse failures are logged and yield an empty list; a
// single source outage must not fail the whole scan.
func (s *Scanner) ScanSource(ctx context.Context, src registry.SourceConfig) []CandidateReference {
	log := s.logger.With(zap.String("source", src.ID))

	doc, baseURL, err := s.fetchListing(ctx, src.ListingURL)
	if err != nil {
		log.Warn("listing fetch failed", zap.String("url", src.ListingURL), zap.Error(err))
		metrics.ObserveScan(src.ID, "fetch_failed", 0)
		return nil
	}

	seen := make(map[string]struct{})
	var refs []CandidateReference

	doc.Find(src.Selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		resolved, err := resolveHref(baseURL, href)
		if err != nil {
			log.Debug("skipping unresolvable link", zap.String("href", href), zap.Error(err))
			return
		}
		title := strings.Join(strings.Fields(sel.Text()), " ")
		if !acceptLink(src, title, resolved.Path) {
			return
		}
		normalized, err := NormalizeURL(resolved.String())
		if err != nil {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		refs = append(refs, CandidateReference{
			SourceID:     src.ID,
			Title:        title,
			URL:          normalized,
			DiscoveredAt: s.clock.Now(),
			Status:       StatusNew,
		})
	})

	log.Info("source scanned", zap.Int("candidates", len(refs)))
	metrics.ObserveScan(src.ID, "ok", len(refs))
	return refs
}

func (s *Scanner) fetchListing(ctx context.Context, listingURL string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("listing returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse listing html: %w", err)
	}
	// Redirects may have moved us; resolve hrefs against the final URL.
	return doc, resp.Request.URL, nil
}

// acceptLink applies the dual acceptance condition: a keyword match on the
// visible text catches well-labeled HTML landing pages, while the document
// extension catches badly labeled but obviously-PDF links.
func acceptLink(src registry.SourceConfig, title, urlPath string) bool {
	if strings.HasSuffix(strings.ToLower(urlPath), documentExtension) {
		return true
	}
	lowered := strings.ToLower(title)
	for _, kw := range src.Keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
