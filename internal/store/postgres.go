package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-cli/internal/consolidate"
	"github.com/sells-group/audit-cli/internal/db"
	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
	"github.com/sells-group/audit-cli/internal/scoring"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (id, deal_id, stage_id, company_name, domain, country, status, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	"get_run": `SELECT ` + runColumns + ` FROM runs WHERE id = $1`,
	"save_report": `INSERT INTO run_reports (run_id, unit_name, report, created_at) VALUES ($1, $2, $3, $4)
	 ON CONFLICT (run_id, unit_name) DO UPDATE SET report = $3, created_at = $4`,
	"lookup_company": `SELECT domain, company_name, linkedin_id, linkedin_url, growth, fetched_at
	 FROM company_cache WHERE domain = $1 AND fetched_at > $2`,
	"lookup_executive": `SELECT payload FROM executives
	 WHERE payload->>'url' = $1 AND fetched_at > $2
	 ORDER BY fetched_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	deal_id      TEXT NOT NULL DEFAULT '',
	stage_id     TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL,
	domain       TEXT NOT NULL,
	country      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	verdict      TEXT,
	score_total  DOUBLE PRECISION,
	score_max    INTEGER,
	data_quality DOUBLE PRECISION,
	final_report TEXT,
	scoring      JSONB,
	errors       JSONB,
	consolidated JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_reports (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	unit_name  TEXT NOT NULL,
	report     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, unit_name)
);

CREATE TABLE IF NOT EXISTS company_cache (
	domain       TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	linkedin_id  TEXT,
	linkedin_url TEXT,
	growth       JSONB,
	fetched_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS executives (
	company_domain TEXT NOT NULL,
	provider_id    TEXT NOT NULL,
	full_name      TEXT NOT NULL,
	title          TEXT,
	is_current     BOOLEAN NOT NULL DEFAULT true,
	payload        JSONB NOT NULL,
	fetched_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (company_domain, provider_id)
);

CREATE TABLE IF NOT EXISTS posts (
	company_domain TEXT NOT NULL,
	author         TEXT NOT NULL,
	posted_at      TEXT,
	payload        JSONB NOT NULL,
	fetched_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_domain ON runs(domain);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_reports_run_id ON run_reports(run_id);
CREATE INDEX IF NOT EXISTS idx_company_cache_name ON company_cache(company_name);
CREATE INDEX IF NOT EXISTS idx_executives_domain ON executives(company_domain);
CREATE INDEX IF NOT EXISTS idx_executives_url ON executives((payload->>'url'));
CREATE INDEX IF NOT EXISTS idx_posts_domain ON posts(company_domain);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, seed RunSeed) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, deal_id, stage_id, company_name, domain, country, status, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, seed.DealID, seed.StageID, seed.CompanyName, seed.Domain, seed.Country,
		string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID)
	run, err := scanRunPg(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Domain != "" {
		query += fmt.Sprintf(` AND domain = $%d`, argIdx)
		args = append(args, filter.Domain)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRunPg(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) FinalizeRun(ctx context.Context, runID string, out Outcome) error {
	scoringJSON, errorsJSON, consolidatedJSON, err := outcomeJSON(out)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal outcome")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, verdict = $2, score_total = $3, score_max = $4,
	 data_quality = $5, final_report = $6, scoring = $7, errors = $8, consolidated = $9,
	 completed_at = $10 WHERE id = $11`,
		string(out.Status), out.Verdict, out.ScoreTotal, out.ScoreMax,
		out.DataQuality, out.FinalReport, scoringJSON, errorsJSON, consolidatedJSON,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID, reason string) error {
	errorsJSON, err := json.Marshal(map[string]string{"run": reason})
	if err != nil {
		return eris.Wrap(err, "postgres: marshal failure")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, errors = $2, completed_at = $3 WHERE id = $4`,
		string(RunStatusFailed), errorsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, runID string, rep report.AgentReport) error {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_reports (run_id, unit_name, report, created_at) VALUES ($1, $2, $3, $4)
	 ON CONFLICT (run_id, unit_name) DO UPDATE SET report = $3, created_at = $4`,
		runID, rep.Unit, reportJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save report %s/%s", runID, rep.Unit)
}

func (s *PostgresStore) ListReports(ctx context.Context, runID string) ([]report.AgentReport, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT report FROM run_reports WHERE run_id = $1 ORDER BY created_at, unit_name`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var reports []report.AgentReport
	for rows.Next() {
		var reportJSON []byte
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		var rep report.AgentReport
		if err := json.Unmarshal(reportJSON, &rep); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal report")
		}
		reports = append(reports, rep)
	}
	return reports, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func (s *PostgresStore) LookupCompany(ctx context.Context, domain, companyName string, maxAge time.Duration) (*linkedin.CompanyCacheEntry, error) {
	cutoff := freshnessCutoff(maxAge)

	row := s.pool.QueryRow(ctx,
		`SELECT domain, company_name, linkedin_id, linkedin_url, growth, fetched_at
	 FROM company_cache WHERE domain = $1 AND fetched_at > $2`,
		domain, cutoff,
	)
	entry, err := scanCompanyEntryPg(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup company")
	}
	if entry != nil || companyName == "" {
		return entry, nil
	}

	row = s.pool.QueryRow(ctx,
		`SELECT domain, company_name, linkedin_id, linkedin_url, growth, fetched_at
	 FROM company_cache WHERE LOWER(company_name) = LOWER($1) AND fetched_at > $2
	 ORDER BY fetched_at DESC LIMIT 1`,
		companyName, cutoff,
	)
	entry, err = scanCompanyEntryPg(row)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lookup company by name")
	}
	return entry, nil
}

func (s *PostgresStore) SaveCompany(ctx context.Context, entry linkedin.CompanyCacheEntry) error {
	growthJSON, err := growthArg(entry.Growth)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal growth")
	}
	fetchedAt := entry.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO company_cache (domain, company_name, linkedin_id, linkedin_url, growth, fetched_at)
	 VALUES ($1, $2, $3, $4, $5, $6)
	 ON CONFLICT (domain) DO UPDATE SET company_name = $2, linkedin_id = $3,
	   linkedin_url = $4, growth = $5, fetched_at = $6`,
		entry.Domain, entry.CompanyName, entry.LinkedInID, entry.LinkedInURL,
		growthJSON, fetchedAt,
	)
	return eris.Wrapf(err, "postgres: save company %s", entry.Domain)
}

func (s *PostgresStore) LookupExecutive(ctx context.Context, profileURL string, maxAge time.Duration) (*linkedin.Executive, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM executives
	 WHERE payload->>'url' = $1 AND fetched_at > $2
	 ORDER BY fetched_at DESC LIMIT 1`,
		profileURL, freshnessCutoff(maxAge),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: lookup executive")
	}

	var exec linkedin.Executive
	if err := json.Unmarshal(payload, &exec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal executive")
	}
	return &exec, nil
}

func (s *PostgresStore) SaveExecutives(ctx context.Context, domain string, execs []linkedin.Executive) error {
	rows, err := executiveRows(domain, execs, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "postgres: marshal executives")
	}
	_, err = db.ReplaceSet(ctx, s.pool, "executives", "company_domain", domain, executiveColumns, rows)
	return eris.Wrapf(err, "postgres: save executives %s", domain)
}

func (s *PostgresStore) SavePosts(ctx context.Context, domain string, posts []linkedin.Post) error {
	rows, err := postRows(domain, posts, time.Now().UTC())
	if err != nil {
		return eris.Wrap(err, "postgres: marshal posts")
	}
	_, err = db.ReplaceSet(ctx, s.pool, "posts", "company_domain", domain, postColumns, rows)
	return eris.Wrapf(err, "postgres: save posts %s", domain)
}

// scan helpers

func scanRunPg(row scannable) (*Run, error) {
	var r Run
	var verdict, finalReport *string
	var scoreTotal, dataQuality *float64
	var scoreMax *int
	var scoringJSON, errorsJSON, consolidatedJSON []byte
	var completedAt *time.Time

	err := row.Scan(&r.ID, &r.DealID, &r.StageID, &r.CompanyName, &r.Domain, &r.Country,
		&r.Status, &verdict, &scoreTotal, &scoreMax, &dataQuality, &finalReport,
		&scoringJSON, &errorsJSON, &consolidatedJSON, &r.CreatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, err
	}

	if verdict != nil {
		r.Verdict = *verdict
	}
	if scoreTotal != nil {
		r.ScoreTotal = *scoreTotal
	}
	if scoreMax != nil {
		r.ScoreMax = *scoreMax
	}
	if dataQuality != nil {
		r.DataQuality = *dataQuality
	}
	if finalReport != nil {
		r.FinalReport = *finalReport
	}
	r.CompletedAt = completedAt
	if scoringJSON != nil {
		r.Scoring = &scoring.Result{}
		if err := json.Unmarshal(scoringJSON, r.Scoring); err != nil {
			return nil, eris.Wrap(err, "unmarshal scoring")
		}
	}
	if errorsJSON != nil {
		if err := json.Unmarshal(errorsJSON, &r.Errors); err != nil {
			return nil, eris.Wrap(err, "unmarshal errors")
		}
	}
	if consolidatedJSON != nil {
		r.Consolidated = &consolidate.Dataset{}
		if err := json.Unmarshal(consolidatedJSON, r.Consolidated); err != nil {
			return nil, eris.Wrap(err, "unmarshal consolidated")
		}
	}
	return &r, nil
}

func scanCompanyEntryPg(row scannable) (*linkedin.CompanyCacheEntry, error) {
	var entry linkedin.CompanyCacheEntry
	var linkedinID, linkedinURL *string
	var growthJSON []byte

	err := row.Scan(&entry.Domain, &entry.CompanyName, &linkedinID, &linkedinURL,
		&growthJSON, &entry.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if linkedinID != nil {
		entry.LinkedInID = *linkedinID
	}
	if linkedinURL != nil {
		entry.LinkedInURL = *linkedinURL
	}
	if growthJSON != nil {
		entry.Growth = &linkedin.Growth{}
		if err := json.Unmarshal(growthJSON, entry.Growth); err != nil {
			return nil, err
		}
	}
	return &entry, nil
}
