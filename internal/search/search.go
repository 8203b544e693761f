package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultPublication ResultType = "publication"
	ResultTalk        ResultType = "talk"
	ResultActivity    ResultType = "activity"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// PublicationRecord is the data we index for a publication.
type PublicationRecord struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Venue   string `json:"venue"`
	Year    string `json:"year"`
}

// TalkRecord is the data we index for a talk.
type TalkRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Venue       string `json:"venue"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// ActivityRecord is the data we index for a professional activity.
type ActivityRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Description  string `json:"description"`
}

// Source yields the current records of every searchable collection. The
// content layer satisfies this from its in-memory mirrors.
type Source interface {
	PublicationRecords() []PublicationRecord
	TalkRecords() []TalkRecord
	ActivityRecords() []ActivityRecord
}
