package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceSet atomically swaps every row of a table belonging to one key
// for a fresh set:
//  1. DELETE FROM table WHERE keyCol = keyVal
//  2. COPY the new rows in
//
// The cache tables (executives, posts) are refreshed this way on each
// enrichment write-through. An empty row set just clears the key.
func ReplaceSet(ctx context.Context, pool Pool, table, keyCol string, keyVal any, columns []string, rows [][]any) (int64, error) {
	if keyCol == "" {
		return 0, eris.New("db: replace: no key column specified")
	}
	if len(columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	deleteSQL := fmt.Sprintf(
		"DELETE FROM %s WHERE %s = $1",
		pgx.Identifier{table}.Sanitize(),
		pgx.Identifier{keyCol}.Sanitize(),
	)
	if _, err := tx.Exec(ctx, deleteSQL, keyVal); err != nil {
		return 0, eris.Wrapf(err, "db: replace: clear %s", table)
	}

	var n int64
	if len(rows) > 0 {
		copySource := pgx.CopyFromRows(rows)
		n, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, copySource)
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace: COPY INTO %s", table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}

	return n, nil
}
