package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://UPSC.Gov.IN/Notice.pdf", "https://upsc.gov.in/Notice.pdf"},
		{"strips default https port", "https://ssc.gov.in:443/notice", "https://ssc.gov.in/notice"},
		{"strips default http port", "http://ssc.gov.in:80/notice", "http://ssc.gov.in/notice"},
		{"keeps explicit port", "https://ssc.gov.in:8443/notice", "https://ssc.gov.in:8443/notice"},
		{"drops fragment", "https://ibps.in/crp#section-2", "https://ibps.in/crp"},
		{"canonicalizes query order", "https://rrb.gov.in/view?b=2&a=1", "https://rrb.gov.in/view?a=1&b=2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURL_SameDocumentConverges(t *testing.T) {
	t.Parallel()

	a, err := NormalizeURL("HTTPS://upsc.gov.in:443/advt.pdf#top")
	require.NoError(t, err)
	b, err := NormalizeURL("https://UPSC.GOV.IN/advt.pdf")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestResolveHref_RelativeVersusRooted(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://upsc.gov.in/notices/2026/index.html")
	require.NoError(t, err)

	rel, err := resolveHref(base, "docs/advt.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://upsc.gov.in/notices/2026/docs/advt.pdf", rel.String())

	rooted, err := resolveHref(base, "/docs/advt.pdf")
	require.NoError(t, err)
	require.Equal(t, "https://upsc.gov.in/docs/advt.pdf", rooted.String())
}

func TestResolveHref_RejectsNonHTTPSchemes(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://upsc.gov.in/")
	require.NoError(t, err)

	for _, href := range []string{"mailto:help@upsc.gov.in", "javascript:void(0)", "ftp://files.gov.in/a.pdf"} {
		_, err := resolveHref(base, href)
		require.Error(t, err, "expected %q to be rejected", href)
	}
}

func TestResolveHref_AbsoluteLinkCrossHost(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://upsc.gov.in/whats-new")
	require.NoError(t, err)

	got, err := resolveHref(base, "https://static.upsc.gov.in/advt.pdf")
	require.NoError(t, err)
	require.Equal(t, "static.upsc.gov.in", got.Host)
}
