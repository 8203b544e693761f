package search

import "strings"

// Mirror implements Searcher by scanning the in-memory content mirrors.
// It is the fallback when the service runs without Postgres.
type Mirror struct {
	source Source
}

// NewMirror creates a mirror scanner over the given content source.
func NewMirror(source Source) *Mirror {
	return &Mirror{source: source}
}

// Healthy always returns true. The mirrors live in process memory.
func (m *Mirror) Healthy() bool {
	return true
}

// Search does a case-insensitive substring scan over every record's text
// fields. Fine at portfolio scale where collections hold dozens of items.
func (m *Mirror) Search(q Query) ([]Result, int, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return nil, 0, nil
	}

	var all []Result
	if q.FilterType == "" || q.FilterType == ResultPublication {
		for _, rec := range m.source.PublicationRecords() {
			if containsFold(needle, rec.Title, rec.Authors, rec.Venue, rec.Year) {
				all = append(all, Result{Type: ResultPublication, ID: rec.ID, Title: rec.Title, Snippet: rec.Authors})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultTalk {
		for _, rec := range m.source.TalkRecords() {
			if containsFold(needle, rec.Title, rec.Venue, rec.Description) {
				all = append(all, Result{Type: ResultTalk, ID: rec.ID, Title: rec.Title, Snippet: firstNonBlank(rec.Description, rec.Venue)})
			}
		}
	}
	if q.FilterType == "" || q.FilterType == ResultActivity {
		for _, rec := range m.source.ActivityRecords() {
			if containsFold(needle, rec.Title, rec.Organization, rec.Description) {
				all = append(all, Result{Type: ResultActivity, ID: rec.ID, Title: rec.Title, Snippet: firstNonBlank(rec.Description, rec.Organization)})
			}
		}
	}

	total := len(all)
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func containsFold(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
