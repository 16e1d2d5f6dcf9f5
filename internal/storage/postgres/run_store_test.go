package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestRunStoreLifecycle(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRunStore(mock, "")
	require.NoError(t, err)

	runID := uuid.MustParse("7f9c24e8-3b12-4fef-91e0-6f1a2b3c4d5e")
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS pipeline_runs").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("INSERT INTO pipeline_runs").
		WithArgs(runID, "https://x/sitemap.xml", started, "running").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE pipeline_runs").
		WithArgs(finished, "succeeded", 3, 2, []byte(`{"empty_body":1}`), (*string)(nil), runID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.StartRun(ctx, runID, "https://x/sitemap.xml", started))
	require.NoError(t, store.FinishRun(ctx, runID, finished, RunSucceeded,
		RunStats{Total: 3, Persisted: 2, Dropped: map[string]int{"empty_body": 1}}, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRunStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRunStore(nil, "runs")
	require.Error(t, err)
}

func TestRunStoreSharesArticlePool(t *testing.T) {
	t.Parallel()

	articles, mock := newMockStore(t)
	require.Same(t, mock, articles.Pool())

	runs, err := NewRunStore(articles.Pool(), "news_runs")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS news_runs").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, runs.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = NewRunStore(articles.Pool(), "runs; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")
}
