package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxPublications = "portfolio_publications"
	idxTalks        = "portfolio_talks"
	idxActivities   = "portfolio_activities"
)

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes.
// The caller should proceed with the fallback searcher if the instance
// never becomes reachable.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		searchable []string
	}{
		{idxPublications, []string{"title", "authors", "venue", "year"}},
		{idxTalks, []string{"title", "venue", "description"}},
		{idxActivities, []string{"title", "organization", "description"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			log.Printf("search: create index %s (may already exist): %v", idx.uid, err)
		}
		if _, err := m.client.Index(idx.uid).UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.Printf("search: update searchable attrs for %s: %v", idx.uid, err)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries all three indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxPublications, ResultPublication},
		{idxTalks, ResultTalk},
		{idxActivities, ResultActivity},
	}

	var queries []*meili.SearchRequest
	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxPublications:
		return ResultPublication
	case idxTalks:
		return ResultTalk
	case idxActivities:
		return ResultActivity
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))

	switch rtyp {
	case ResultPublication:
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "authors"), decodeString(hit, "venue"))
	case ResultTalk:
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "venue"))
	case ResultActivity:
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "organization"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexPublications bulk-indexes publications.
func (m *Meili) IndexPublications(records []PublicationRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxPublications).AddDocuments(records, nil)
	return err
}

// IndexTalks bulk-indexes talks.
func (m *Meili) IndexTalks(records []TalkRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTalks).AddDocuments(records, nil)
	return err
}

// IndexActivities bulk-indexes activities.
func (m *Meili) IndexActivities(records []ActivityRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxActivities).AddDocuments(records, nil)
	return err
}

// DeletePublication removes a publication from the search index.
func (m *Meili) DeletePublication(id string) error {
	_, err := m.client.Index(idxPublications).DeleteDocument(id, nil)
	return err
}

// DeleteTalk removes a talk from the search index.
func (m *Meili) DeleteTalk(id string) error {
	_, err := m.client.Index(idxTalks).DeleteDocument(id, nil)
	return err
}

// DeleteActivity removes an activity from the search index.
func (m *Meili) DeleteActivity(id string) error {
	_, err := m.client.Index(idxActivities).DeleteDocument(id, nil)
	return err
}
