package extractor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const fullResponse = `{
	"title": "Combined Graduate Level Examination 2026",
	"organization": "Staff Selection Commission",
	"category": "central",
	"short_description": "SSC invites online applications for Group B and C posts.",
	"vacancy_count": 17727,
	"fees": {"general": "100", "sc_st": "0"},
	"eligibility": {"education": "Bachelor's degree", "age_limit": "18-32"},
	"dates": {"apply_last_date": "2026-10-15"}
}`

func TestParseResponse_FullPosting(t *testing.T) {
	t.Parallel()

	posting, err := parseResponse(fullResponse)
	require.NoError(t, err)
	require.Equal(t, "Combined Graduate Level Examination 2026", posting.Title)
	require.Equal(t, 17727, posting.VacancyCount)
	require.Equal(t, "100", posting.Fees["general"])
	require.Equal(t, "2026-10-15", posting.Dates["apply_last_date"])
	require.Empty(t, missingFields(posting))
	require.Equal(t, 1.0, confidence(posting))
}

func TestParseResponse_StripsMarkdownFence(t *testing.T) {
	t.Parallel()

	fenced := "```json\n" + fullResponse + "\n```"
	posting, err := parseResponse(fenced)
	require.NoError(t, err)
	require.Equal(t, "Staff Selection Commission", posting.Organization)
}

func TestParseResponse_VacancyCountAsString(t *testing.T) {
	t.Parallel()

	posting, err := parseResponse(`{"title":"t","organization":"o","vacancy_count":"250"}`)
	require.NoError(t, err)
	require.Equal(t, 250, posting.VacancyCount)
}

func TestParseResponse_NullFieldsAreMissing(t *testing.T) {
	t.Parallel()

	posting, err := parseResponse(`{
		"title": "Constable Recruitment",
		"organization": "Railway Recruitment Board",
		"category": null,
		"vacancy_count": null,
		"fees": null,
		"eligibility": {"education": null},
		"dates": null
	}`)
	require.NoError(t, err)

	missing := missingFields(posting)
	require.Contains(t, missing, "category")
	require.Contains(t, missing, "vacancy_count")
	require.Contains(t, missing, "fees")
	require.Contains(t, missing, "eligibility")
	require.Contains(t, missing, "dates")
	require.InDelta(t, 2.0/8.0, confidence(posting), 1e-9)
}

func TestParseResponse_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := parseResponse(`{"title": "broken`)
	require.ErrorIs(t, err, ErrSchema)
}

func TestParseResponse_EmptyResponse(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "```json\n```"} {
		_, err := parseResponse(raw)
		require.ErrorIs(t, err, ErrSchema, "raw=%q", raw)
	}
}

func TestParseResponse_NoIdentityFields(t *testing.T) {
	t.Parallel()

	_, err := parseResponse(`{"category":"central","vacancy_count":10}`)
	require.ErrorIs(t, err, ErrSchema)
}

func TestStringifyMap_CoercesScalars(t *testing.T) {
	t.Parallel()

	out := stringifyMap(map[string]any{
		"general": "100",
		"blank":   "  ",
		"nil":     nil,
		"numeric": 250,
	})
	require.Equal(t, "100", out["general"])
	require.Equal(t, "250", out["numeric"])
	require.NotContains(t, out, "blank")
	require.NotContains(t, out, "nil")
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Combined Graduate Level Examination 2026", "combined-graduate-level-examination-2026"},
		{"UPSC: Civil Services (Preliminary) Exam", "upsc-civil-services-preliminary-exam"},
		{"  --weird__input--  ", "weird-input"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Slugify(tc.in), "input %q", tc.in)
	}
}
