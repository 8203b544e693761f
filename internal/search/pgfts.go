package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search over the
// jsonb-backed content documents, as a fallback when Meilisearch is down.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search unnests each collection's items array and matches plainto_tsquery
// against the indexed text fields, ranked with ts_rank.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	collections := []struct {
		collection string
		rtyp       ResultType
		textFields []string
		snippet    string
	}{
		{"publications", ResultPublication, []string{"title", "authors", "venue", "year"}, "authors"},
		{"talks", ResultTalk, []string{"title", "venue", "description"}, "description"},
		{"activities", ResultActivity, []string{"title", "organization", "description"}, "description"},
	}

	var subQueries []string
	for _, c := range collections {
		if q.FilterType != "" && q.FilterType != c.rtyp {
			continue
		}
		parts := make([]string, len(c.textFields))
		for i, f := range c.textFields {
			parts[i] = fmt.Sprintf("coalesce(item->>'%s', '')", f)
		}
		vector := fmt.Sprintf("to_tsvector('english', %s)", strings.Join(parts, " || ' ' || "))
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT '%s'::text AS type, item->>'id' AS id, item->>'title' AS title,
				ts_headline('english', coalesce(item->>'%s', ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(%s, %s) AS rank
			FROM documents d, jsonb_array_elements(d.data->'items') item
			WHERE d.collection = '%s' AND %s @@ %s`,
			c.rtyp, c.snippet, tsQuery, vector, tsQuery, c.collection, vector, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}
