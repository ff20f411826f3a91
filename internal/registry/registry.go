// Package registry holds the static catalogue of government notification sources.
// Sources are pure configuration: adding one requires no crawler code change.
package registry

import (
	"fmt"
	"strings"
)

// SourceConfig describes one crawl target. Instances are defined at deploy
// time and never mutated at runtime.
type SourceConfig struct {
	ID         string   `mapstructure:"id" json:"id"`
	Name       string   `mapstructure:"name" json:"name"`
	ListingURL string   `mapstructure:"listing_url" json:"listing_url"`
	Selector   string   `mapstructure:"selector" json:"selector"`
	Keywords   []string `mapstructure:"keywords" json:"keywords"`
	LogoURL    string   `mapstructure:"logo_url" json:"logo_url,omitempty"`
}

// Registry is an immutable, ordered collection of sources.
type Registry struct {
	sources []SourceConfig
	byID    map[string]SourceConfig
}

// New builds a Registry, validating that every source is well formed and IDs
// are unique.
func New(sources []SourceConfig) (*Registry, error) {
	byID := make(map[string]SourceConfig, len(sources))
	for _, src := range sources {
		if strings.TrimSpace(src.ID) == "" {
			return nil, fmt.Errorf("source %q: id is required", src.Name)
		}
		if strings.TrimSpace(src.ListingURL) == "" {
			return nil, fmt.Errorf("source %q: listing_url is required", src.ID)
		}
		if strings.TrimSpace(src.Selector) == "" {
			return nil, fmt.Errorf("source %q: selector is required", src.ID)
		}
		if _, dup := byID[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		byID[src.ID] = src
	}
	return &Registry{
		sources: append([]SourceConfig(nil), sources...),
		byID:    byID,
	}, nil
}

// Default returns the built-in catalogue of official notification boards.
func Default() *Registry {
	reg, err := New([]SourceConfig{
		{
			ID:         "upsc",
			Name:       "Union Public Service Commission",
			ListingURL: "https://upsc.gov.in/whats-new",
			Selector:   "div.view-content a",
			Keywords:   []string{"recruitment", "notification", "advt", "examination"},
		},
		{
			ID:         "ssc",
			Name:       "Staff Selection Commission",
			ListingURL: "https://ssc.gov.in/for-candidates/notice-board",
			Selector:   "div.notice-board a",
			Keywords:   []string{"recruitment", "notice", "examination", "vacancy"},
		},
		{
			ID:         "ibps",
			Name:       "Institute of Banking Personnel Selection",
			ListingURL: "https://www.ibps.in",
			Selector:   "div.wpb_wrapper a",
			Keywords:   []string{"crp", "recruitment", "notification"},
		},
		{
			ID:         "rrb",
			Name:       "Railway Recruitment Board",
			ListingURL: "https://indianrailways.gov.in/railwayboard/view_section.jsp?lang=0&id=0,7,1281",
			Selector:   "table a",
			Keywords:   []string{"cen", "recruitment", "employment notice"},
		},
		{
			ID:         "upsssc",
			Name:       "Uttar Pradesh Subordinate Services Selection Commission",
			ListingURL: "https://upsssc.gov.in/AllNotifications.aspx",
			Selector:   "table#tblNotification a",
			Keywords:   []string{"advertisement", "bharti", "recruitment"},
		},
	})
	if err != nil {
		// Built-in catalogue is validated by tests; this is unreachable.
		panic(err)
	}
	return reg
}

// All returns the sources in registration order.
func (r *Registry) All() []SourceConfig {
	return append([]SourceConfig(nil), r.sources...)
}

// Get looks up a source by id.
func (r *Registry) Get(id string) (SourceConfig, bool) {
	src, ok := r.byID[id]
	return src, ok
}

// Len reports the number of registered sources.
func (r *Registry) Len() int {
	return len(r.sources)
}
