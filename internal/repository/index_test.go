package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/godigest/internal/testhelpers"
)

func newIndexRepo(t *testing.T) (*IndexRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewIndexRepository(db, testhelpers.NewTestLogger()), mock
}

func TestIndexRepository_FindByFingerprint(t *testing.T) {
	repo, mock := newIndexRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM content_index")).
		WithArgs("fp-1").
		WillReturnRows(mock.NewRows([]string{"content_id"}).AddRow("item-1"))

	contentID, err := repo.FindByFingerprint(context.Background(), "fp-1", "")
	require.NoError(t, err)
	assert.Equal(t, "item-1", contentID)
}

func TestIndexRepository_FindByFingerprint_Excludes(t *testing.T) {
	repo, mock := newIndexRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND content_id != $2")).
		WithArgs("fp-1", "item-1").
		WillReturnRows(mock.NewRows([]string{"content_id"}))

	_, err := repo.FindByFingerprint(context.Background(), "fp-1", "item-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIndexRepository_FindByFingerprint_NotFound(t *testing.T) {
	repo, mock := newIndexRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM content_index")).
		WithArgs("fp-missing").
		WillReturnRows(mock.NewRows([]string{"content_id"}))

	_, err := repo.FindByFingerprint(context.Background(), "fp-missing", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIndexRepository_Upsert(t *testing.T) {
	repo, mock := newIndexRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO content_index")).
		WithArgs("item-1", "fp-1", 72, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), "item-1", "fp-1", 72))
	assert.NoError(t, mock.ExpectationsWereMet())
}
