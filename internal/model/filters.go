package model

import (
	"net/url"
	"strings"
)

// ListFilters describe the currently active conversation list view.
// Key produces a stable string used by the query cache, so two filter
// values that render the same list share one cache slot.
type ListFilters struct {
	Category Category
	Channel  string
	Search   string
}

// Key returns the canonical cache-key fragment for these filters.
// Values are percent-encoded: the search text is user input and must
// not be able to smuggle extra fields into the key.
func (f ListFilters) Key() string {
	cat := f.Category
	if cat == "" {
		cat = CategoryAll
	}
	v := url.Values{}
	v.Set("cat", string(cat))
	v.Set("ch", f.Channel)
	v.Set("q", strings.ToLower(strings.TrimSpace(f.Search)))
	return v.Encode()
}

// ParseFiltersKey reconstructs ListFilters from Key output, so a cached
// query can be refetched from its key alone.
func ParseFiltersKey(s string) ListFilters {
	v, err := url.ParseQuery(s)
	if err != nil {
		return ListFilters{}
	}
	return ListFilters{
		Category: Category(v.Get("cat")),
		Channel:  v.Get("ch"),
		Search:   v.Get("q"),
	}
}
