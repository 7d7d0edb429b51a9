package store

import (
	"encoding/json"
	"time"

	"github.com/sells-group/audit-cli/internal/linkedin"
)

// Column orders shared by the SQLite inserts and the Postgres COPY
// writes.
var (
	executiveColumns = []string{"company_domain", "provider_id", "full_name", "title", "is_current", "payload", "fetched_at"}
	postColumns      = []string{"company_domain", "author", "posted_at", "payload", "fetched_at"}
)

// freshnessCutoff converts a cache max age into the oldest acceptable
// fetched_at. A non-positive age accepts everything.
func freshnessCutoff(maxAge time.Duration) time.Time {
	if maxAge <= 0 {
		return time.Time{}
	}
	return time.Now().UTC().Add(-maxAge)
}

// outcomeJSON marshals the three optional JSON columns of a finalized
// run. Empty inputs stay nil so the columns become NULL.
func outcomeJSON(out Outcome) (scoringJSON, errorsJSON, consolidatedJSON []byte, err error) {
	if out.Scoring != nil {
		if scoringJSON, err = json.Marshal(out.Scoring); err != nil {
			return nil, nil, nil, err
		}
	}
	if len(out.Errors) > 0 {
		if errorsJSON, err = json.Marshal(out.Errors); err != nil {
			return nil, nil, nil, err
		}
	}
	if out.Consolidated != nil {
		if consolidatedJSON, err = json.Marshal(out.Consolidated); err != nil {
			return nil, nil, nil, err
		}
	}
	return scoringJSON, errorsJSON, consolidatedJSON, nil
}

func growthArg(g *linkedin.Growth) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	return json.Marshal(g)
}

// executiveKey is the row identity: provider ID when the provider gave
// one, the person's name otherwise.
func executiveKey(e linkedin.Executive) string {
	if e.ID != "" {
		return e.ID
	}
	return e.FullName
}

// executiveRows builds insert rows in executiveColumns order, deduped
// by key (last occurrence wins) so the primary key cannot collide
// within one refresh.
func executiveRows(domain string, execs []linkedin.Executive, fetchedAt time.Time) ([][]any, error) {
	index := make(map[string]int, len(execs))
	var rows [][]any
	for _, e := range execs {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		row := []any{domain, executiveKey(e), e.FullName, e.Title, e.IsCurrent, string(payload), fetchedAt}
		if i, seen := index[executiveKey(e)]; seen {
			rows[i] = row
			continue
		}
		index[executiveKey(e)] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}

// postRows builds insert rows in postColumns order.
func postRows(domain string, posts []linkedin.Post, fetchedAt time.Time) ([][]any, error) {
	rows := make([][]any, 0, len(posts))
	for _, p := range posts {
		payload, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		rows = append(rows, []any{domain, p.AuthorName, p.Date, string(payload), fetchedAt})
	}
	return rows, nil
}
