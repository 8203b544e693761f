package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to the
// configured secondary searcher (PG FTS or the in-memory mirror scan).
type Service struct {
	meili    *Meili
	fallback Searcher
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured; fallback must not be.
func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

// Search tries Meilisearch if healthy, otherwise uses the fallback.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: fallback error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// ReindexCollection pushes one collection's current records to Meilisearch
// (fire-and-forget). Called whenever that collection changes.
func (s *Service) ReindexCollection(collection string, source Source) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		var err error
		switch collection {
		case "publications":
			err = s.meili.IndexPublications(source.PublicationRecords())
		case "talks":
			err = s.meili.IndexTalks(source.TalkRecords())
		case "activities":
			err = s.meili.IndexActivities(source.ActivityRecords())
		default:
			return
		}
		if err != nil {
			log.Printf("search: reindex %s: %v", collection, err)
		}
	}()
}

// DeleteRecord removes one record from its Meilisearch index
// (fire-and-forget).
func (s *Service) DeleteRecord(rtyp ResultType, id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		var err error
		switch rtyp {
		case ResultPublication:
			err = s.meili.DeletePublication(id)
		case ResultTalk:
			err = s.meili.DeleteTalk(id)
		case ResultActivity:
			err = s.meili.DeleteActivity(id)
		default:
			return
		}
		if err != nil {
			log.Printf("search: delete %s %s: %v", rtyp, id, err)
		}
	}()
}

// ReindexAll pushes every searchable collection to Meilisearch. Called once
// after the content mirrors finish loading.
func (s *Service) ReindexAll(source Source) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexPublications(source.PublicationRecords()); err != nil {
		log.Printf("search: reindex publications: %v", err)
	}
	if err := s.meili.IndexTalks(source.TalkRecords()); err != nil {
		log.Printf("search: reindex talks: %v", err)
	}
	if err := s.meili.IndexActivities(source.ActivityRecords()); err != nil {
		log.Printf("search: reindex activities: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
