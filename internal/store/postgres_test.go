package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/audit-cli/internal/linkedin"
	"github.com/sells-group/audit-cli/internal/report"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "006Aa000004XyZ", "stage-audit", "Acme SAS", "acme.fr", "France", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), RunSeed{
		DealID:      "006Aa000004XyZ",
		StageID:     "stage-audit",
		CompanyName: "Acme SAS",
		Domain:      "acme.fr",
		Country:     "France",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, deal_id, stage_id, company_name`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinalizeRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), "nonexistent-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinalizeRun(context.Background(), "nonexistent-run", Outcome{Status: RunStatusCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.FailRun(context.Background(), "run-1", "store unreachable")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveReport_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(run_id, unit_name\)`).
		WithArgs("run-1", "finance", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveReport(context.Background(), "run-1", report.AgentReport{Unit: "finance"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveCompany_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(domain\)`).
		WithArgs("acme.fr", "Acme SAS", "123456", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SaveCompany(context.Background(), linkedin.CompanyCacheEntry{
		Domain:      "acme.fr",
		CompanyName: "Acme SAS",
		LinkedInID:  "123456",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LookupCompany_MissWithoutName(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM company_cache WHERE domain`).
		WithArgs("unknown.fr", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	entry, err := s.LookupCompany(context.Background(), "unknown.fr", "", 24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LookupCompany_FallsBackToName(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM company_cache WHERE domain`).
		WithArgs("unknown.fr", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`FROM company_cache WHERE LOWER\(company_name\)`).
		WithArgs("Acme SAS", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	entry, err := s.LookupCompany(context.Background(), "unknown.fr", "Acme SAS", 24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LookupExecutive_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM executives`).
		WithArgs("https://www.linkedin.com/in/nobody", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	exec, err := s.LookupExecutive(context.Background(), "https://www.linkedin.com/in/nobody", 24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, exec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveExecutives_ReplacesSet(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "executives" WHERE "company_domain" = \$1`).
		WithArgs("acme.fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"executives"}, executiveColumns).
		WillReturnResult(1)
	mock.ExpectCommit()

	err := s.SaveExecutives(context.Background(), "acme.fr", []linkedin.Executive{
		{ID: "prov-1", FullName: "Marie Dupont", URL: "https://www.linkedin.com/in/marie-dupont", Title: "CEO"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePosts_EmptyClearsRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "posts" WHERE "company_domain" = \$1`).
		WithArgs("acme.fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	err := s.SavePosts(context.Background(), "acme.fr", nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
