package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/audit-cli/internal/consolidate"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	deal_id      TEXT NOT NULL DEFAULT '',
	stage_id     TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL,
	domain       TEXT NOT NULL,
	country      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	verdict      TEXT,
	score_total  REAL,
	score_max    INTEGER,
	data_quality REAL,
	final_report TEXT,
	scoring      TEXT,
	errors       TEXT,
	consolidated TEXT,
	created_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_reports (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	unit_name  TEXT NOT NULL,
	report     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, unit_name)
);

CREATE TABLE IF NOT EXISTS company_cache (
	domain       TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	linkedin_id  TEXT,
	linkedin_url TEXT,
	growth       TEXT,
	fetched_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS executives (
	company_domain TEXT NOT NULL,
	provider_id    TEXT NOT NULL,
	full_name      TEXT NOT NULL,
	title          TEXT,
	is_current     INTEGER NOT NULL DEFAULT 1,
	payload        TEXT NOT NULL,
	fetched_at     DATETIME NOT NULL,
	PRIMARY KEY (company_domain, provider_id)
);

CREATE TABLE IF NOT EXISTS posts (
	company_domain TEXT NOT NULL,
	author         TEXT NOT NULL,
	posted_at      TEXT,
	payload        TEXT NOT NULL,
	fetched_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_domain ON runs(domain);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_reports_run_id ON run_reports(run_id);
CREATE INDEX IF NOT EXISTS idx_company_cache_name ON company_cache(company_name);
CREATE INDEX IF NOT EXISTS idx_executives_domain ON executives(company_domain);
CREATE INDEX IF NOT EXISTS idx_posts_domain ON posts(company_domain);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, seed RunSeed) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, deal_id, stage_id, company_name, domain, country, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, seed.DealID, seed.StageID, seed.CompanyName, seed.Domain, seed.Country,
		string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{
		ID:          id,
		DealID:      seed.DealID,
		StageID:     seed.StageID,
		CompanyName: seed.CompanyName,
		Domain:      seed.Domain,
		Country:     seed.Country,
		Status:      RunStatusRunning,
		CreatedAt:   now,
	}, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Domain != "" {
		query += ` AND domain = ?`
		args = append(args, filter.Domain)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) FinalizeRun(ctx context.Context, runID string, out Outcome) error {
	scoringJSON, errorsJSON, consolidatedJSON, err := outcomeJSON(out)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal outcome")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, verdict = ?, score_total = ?, score_max = ?,
		 data_quality = ?, final_report = ?, scoring = ?, errors = ?, consolidated = ?,
		 completed_at = ? WHERE id = ?`,
		string(out.Status), out.Verdict, out.ScoreTotal, out.ScoreMax,
		out.DataQuality, out.FinalReport, toText(scoringJSON), toText(errorsJSON),
		toText(consolidatedJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID, reason string) error {
	errorsJSON, err := json.Marshal(map[string]string{"run": reason})
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal failure")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, errors = ?, completed_at = ? WHERE id = ?`,
		string(RunStatusFailed), string(errorsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) SaveReport(ctx context.Context, runID string, rep report.AgentReport) error {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_reports (run_id, unit_name, report, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (run_id, unit_name) DO UPDATE SET report = excluded.report, created_at = excluded.created_at`,
		runID, rep.Unit, string(reportJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save report %s/%s", runID, rep.Unit)
}

func (s *SQLiteStore) ListReports(ctx context.Context, runID string) ([]report.AgentReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM run_reports WHERE run_id = ? ORDER BY created_at, unit_name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var reports []report.AgentReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		var rep report.AgentReport
		if err := json.Unmarshal([]byte(reportJSON), &rep); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal report")
		}
		reports = append(reports, rep)
	}
	return reports, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) LookupCompany(ctx context.Context, domain, companyName string, maxAge time.Duration) (*linkedin.CompanyCacheEntry, error) {
	cutoff := freshnessCutoff(maxAge)

	row := s.db.QueryRowContext(ctx,
		`SELECT domain, company_name, linkedin_id, linkedin_url, growth, fetched_at
		 FROM company_cache WHERE domain = ? AND fetched_at > ?`,
		domain, cutoff,
	)
	entry, err := scanCompanyEntry(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup company")
	}
	if entry != nil || companyName == "" {
		return entry, nil
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT domain, company_name, linkedin_id, linkedin_url, growth, fetched_at
		 FROM company_cache WHERE LOWER(company_name) = LOWER(?) AND fetched_at > ?
		 ORDER BY fetched_at DESC LIMIT 1`,
		companyName, cutoff,
	)
	entry, err = scanCompanyEntry(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup company by name")
	}
	return entry, nil
}

func (s *SQLiteStore) SaveCompany(ctx context.Context, entry linkedin.CompanyCacheEntry) error {
	growthJSON, err := growthArg(entry.Growth)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal growth")
	}
	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO company_cache (domain, company_name, linkedin_id, linkedin_url, growth, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (domain) DO UPDATE SET company_name = excluded.company_name,
		   linkedin_id = excluded.linkedin_id, linkedin_url = excluded.linkedin_url,
		   growth = excluded.growth, fetched_at = excluded.fetched_at`,
		entry.Domain, entry.CompanyName, entry.LinkedInID, entry.LinkedInURL,
		toText(growthJSON), fetchedAt,
	)
	return eris.Wrapf(err, "sqlite: save company %s", entry.Domain)
}

func (s *SQLiteStore) LookupExecutive(ctx context.Context, profileURL string, maxAge time.Duration) (*linkedin.Executive, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM executives
		 WHERE json_extract(payload, '$.url') = ? AND fetched_at > ?
		 ORDER BY fetched_at DESC LIMIT 1`,
		profileURL, freshnessCutoff(maxAge),
	)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lookup executive")
	}

	var exec linkedin.Executive
	if err := json.Unmarshal([]byte(payload), &exec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal executive")
	}
	return &exec, nil
}

func (s *SQLiteStore) SaveExecutives(ctx context.Context, domain string, execs []linkedin.Executive) error {
	rows, err := executiveRows(domain, execs, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal executives")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM executives WHERE company_domain = ?`, domain); err != nil {
		return eris.Wrapf(err, "sqlite: clear executives %s", domain)
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO executives (company_domain, provider_id, full_name, title, is_current, payload, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`, r...); err != nil {
			return eris.Wrapf(err, "sqlite: insert executive %s", domain)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit executives")
}

func (s *SQLiteStore) SavePosts(ctx context.Context, domain string, posts []linkedin.Post) error {
	rows, err := postRows(domain, posts, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal posts")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE company_domain = ?`, domain); err != nil {
		return eris.Wrapf(err, "sqlite: clear posts %s", domain)
	}
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO posts (company_domain, author, posted_at, payload, fetched_at)
			 VALUES (?, ?, ?, ?, ?)`, r...); err != nil {
			return eris.Wrapf(err, "sqlite: insert post %s", domain)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit posts")
}

// helpers

const runColumns = `id, deal_id, stage_id, company_name, domain, country, status,
	verdict, score_total, score_max, data_quality, final_report,
	scoring, errors, consolidated, created_at, completed_at`

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// toText converts marshaled JSON to a TEXT column argument, keeping
// nil as SQL NULL.
func toText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var verdict, finalReport, scoringJSON, errorsJSON, consolidatedJSON sql.NullString
	var scoreTotal, dataQuality sql.NullFloat64
	var scoreMax sql.NullInt64
	var completedAt sql.NullTime

	err := row.Scan(&r.ID, &r.DealID, &r.StageID, &r.CompanyName, &r.Domain, &r.Country,
		&r.Status, &verdict, &scoreTotal, &scoreMax, &dataQuality, &finalReport,
		&scoringJSON, &errorsJSON, &consolidatedJSON, &r.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Verdict = verdict.String
	r.ScoreTotal = scoreTotal.Float64
	r.ScoreMax = int(scoreMax.Int64)
	r.DataQuality = dataQuality.Float64
	r.FinalReport = finalReport.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if scoringJSON.Valid {
		r.Scoring = &scoring.Result{}
		if err := json.Unmarshal([]byte(scoringJSON.String), r.Scoring); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal scoring")
		}
	}
	if errorsJSON.Valid {
		if err := json.Unmarshal([]byte(errorsJSON.String), &r.Errors); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal errors")
		}
	}
	if consolidatedJSON.Valid {
		r.Consolidated = &consolidate.Dataset{}
		if err := json.Unmarshal([]byte(consolidatedJSON.String), r.Consolidated); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal consolidated")
		}
	}
	return &r, nil
}

func scanCompanyEntry(row scannable) (*linkedin.CompanyCacheEntry, error) {
	var entry linkedin.CompanyCacheEntry
	var linkedinID, linkedinURL, growthJSON sql.NullString

	err := row.Scan(&entry.Domain, &entry.CompanyName, &linkedinID, &linkedinURL,
		&growthJSON, &entry.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	entry.LinkedInID = linkedinID.String
	entry.LinkedInURL = linkedinURL.String
	if growthJSON.Valid {
		entry.Growth = &linkedin.Growth{}
		if err := json.Unmarshal([]byte(growthJSON.String), entry.Growth); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}
