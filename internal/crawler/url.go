package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so the same document never yields two
// candidates. It lowercases scheme and host, strips default ports and
// fragments, and canonicalizes the query encoding.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// resolveHref resolves href against the page URL it appeared on. Relative
// paths ("docs/a.pdf") resolve against the current path while rooted paths
// ("/docs/a.pdf") resolve against the origin, matching browser behavior.
func resolveHref(base *url.URL, href string) (*url.URL, error) {
	ref, err := base.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, fmt.Errorf("resolve href %q: %w", href, err)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", ref.Scheme)
	}
	return ref, nil
}
