package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceSet_NoKeyColumn(t *testing.T) {
	_, err := ReplaceSet(context.TODO(), nil, "posts", "", "acme.fr", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key column specified")
}

func TestReplaceSet_NoColumns(t *testing.T) {
	_, err := ReplaceSet(context.TODO(), nil, "posts", "company_domain", "acme.fr", nil, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestReplaceSet_DeleteAndCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "posts" WHERE "company_domain" = \$1`).
		WithArgs("acme.fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"posts"}, []string{"company_domain", "author"}).WillReturnResult(3)
	mock.ExpectCommit()

	rows := [][]any{
		{"acme.fr", "Alice"},
		{"acme.fr", "Bob"},
		{"acme.fr", "Carol"},
	}
	n, err := ReplaceSet(context.Background(), mock, "posts", "company_domain", "acme.fr",
		[]string{"company_domain", "author"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSet_EmptyRowsClearsKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "executives" WHERE "company_domain" = \$1`).
		WithArgs("acme.fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 5))
	mock.ExpectCommit()

	n, err := ReplaceSet(context.Background(), mock, "executives", "company_domain", "acme.fr",
		[]string{"company_domain", "provider_id"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceSet_CopyErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "posts" WHERE "company_domain" = \$1`).
		WithArgs("acme.fr").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"posts"}, []string{"company_domain", "author"}).
		WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	_, err = ReplaceSet(context.Background(), mock, "posts", "company_domain", "acme.fr",
		[]string{"company_domain", "author"}, [][]any{{"acme.fr", "Alice"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO posts")
	assert.NoError(t, mock.ExpectationsWereMet())
}
