package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSchema marks provider responses that do not fit the expected structure.
// Callers distinguish these from transport failures: re-prompting may help,
// retrying the same call will not.
var ErrSchema = errors.New("provider response failed schema validation")

// JobPosting is the structured record extracted from one notification.
// The fee/eligibility/date sub-objects are free-form maps so minor schema
// drift in provider output does not invalidate the whole extraction.
type JobPosting struct {
	Title            string            `json:"title"`
	Organization     string            `json:"organization"`
	Category         string            `json:"category"`
	ShortDescription string            `json:"short_description"`
	VacancyCount     int               `json:"vacancy_count"`
	Fees             map[string]string `json:"fees,omitempty"`
	Eligibility      map[string]string `json:"eligibility,omitempty"`
	Dates            map[string]string `json:"dates,omitempty"`
}

// requiredFields enumerates the schema fields counted toward confidence.
var requiredFields = []string{
	"title", "organization", "category", "short_description",
	"vacancy_count", "fees", "eligibility", "dates",
}

// wirePosting tolerates the looser typing providers actually produce:
// vacancy counts as strings, sub-object values of any scalar type.
type wirePosting struct {
	Title            string         `json:"title"`
	Organization     string         `json:"organization"`
	Category         string         `json:"category"`
	ShortDescription string         `json:"short_description"`
	VacancyCount     any            `json:"vacancy_count"`
	Fees             map[string]any `json:"fees"`
	Eligibility      map[string]any `json:"eligibility"`
	Dates            map[string]any `json:"dates"`
}

// parseResponse validates the raw provider output against the schema
// contract and converts it into a JobPosting.
func parseResponse(raw string) (JobPosting, error) {
	cleaned := stripCodeFence(raw)
	if strings.TrimSpace(cleaned) == "" {
		return JobPosting{}, fmt.Errorf("empty response: %w", ErrSchema)
	}

	var wire wirePosting
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	if err := dec.Decode(&wire); err != nil {
		return JobPosting{}, fmt.Errorf("decode response: %v: %w", err, ErrSchema)
	}

	posting := JobPosting{
		Title:            strings.TrimSpace(wire.Title),
		Organization:     strings.TrimSpace(wire.Organization),
		Category:         strings.TrimSpace(wire.Category),
		ShortDescription: strings.TrimSpace(wire.ShortDescription),
		VacancyCount:     parseCount(wire.VacancyCount),
		Fees:             stringifyMap(wire.Fees),
		Eligibility:      stringifyMap(wire.Eligibility),
		Dates:            stringifyMap(wire.Dates),
	}

	if posting.Title == "" && posting.Organization == "" {
		return JobPosting{}, fmt.Errorf("response carries neither title nor organization: %w", ErrSchema)
	}
	return posting, nil
}

// confidence is the engine-computed completeness of an extraction: the share
// of required fields the provider actually populated. Providers are not
// trustworthy self-assessors, so any confidence they report is ignored.
func confidence(p JobPosting) float64 {
	populated := len(requiredFields) - len(missingFields(p))
	return float64(populated) / float64(len(requiredFields))
}

// missingFields lists the required fields left blank by the provider.
func missingFields(p JobPosting) []string {
	var missing []string
	for _, name := range requiredFields {
		if fieldEmpty(p, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func fieldEmpty(p JobPosting, name string) bool {
	switch name {
	case "title":
		return p.Title == ""
	case "organization":
		return p.Organization == ""
	case "category":
		return p.Category == ""
	case "short_description":
		return p.ShortDescription == ""
	case "vacancy_count":
		return p.VacancyCount <= 0
	case "fees":
		return len(p.Fees) == 0
	case "eligibility":
		return len(p.Eligibility) == 0
	case "dates":
		return len(p.Dates) == 0
	default:
		return true
	}
}

// stripCodeFence removes a markdown code fence wrapper. Providers are asked
// for bare JSON but some wrap the payload anyway.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseCount(v any) int {
	var s string
	switch val := v.(type) {
	case nil:
		return 0
	case json.Number:
		s = val.String()
	case string:
		s = strings.TrimSpace(val)
	default:
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return 0
}

func stringifyMap(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(val) == "" {
				continue
			}
			out[k] = val
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
