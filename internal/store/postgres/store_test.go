package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/crawler"
	"github.com/manibhai1989/the-rojgar-palace-sub001/internal/extractor"
)

func testCandidate(url string) crawler.CandidateReference {
	return crawler.CandidateReference{
		SourceID:     "upsc",
		Title:        "Recruitment of Section Officers",
		URL:          url,
		DiscoveredAt: time.Unix(1700000000, 0).UTC(),
		Status:       crawler.StatusNew,
	}
}

func TestUpsertCandidate_InsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	c := testCandidate("https://upsc.gov.in/advt.pdf")
	mock.ExpectExec("INSERT INTO candidates").
		WithArgs(c.SourceID, c.Title, c.URL, c.DiscoveredAt, string(c.Status)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertCandidate(context.Background(), c))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCandidate_RequiresURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	err = store.UpsertCandidate(context.Background(), crawler.CandidateReference{SourceID: "x"})
	require.Error(t, err)
}

func TestUpsertCandidates_CountsOnlyNewRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	fresh := testCandidate("https://upsc.gov.in/new.pdf")
	known := testCandidate("https://upsc.gov.in/old.pdf")

	mock.ExpectExec("INSERT INTO candidates").
		WithArgs(fresh.SourceID, fresh.Title, fresh.URL, fresh.DiscoveredAt, string(fresh.Status)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Conflict on url: the row already exists, nothing inserted.
	mock.ExpectExec("INSERT INTO candidates").
		WithArgs(known.SourceID, known.Title, known.URL, known.DiscoveredAt, string(known.Status)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	stored, err := store.UpsertCandidates(context.Background(), []crawler.CandidateReference{fresh, known})
	require.NoError(t, err)
	require.Equal(t, 1, stored)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceCandidate_UpdatesStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE candidates").
		WithArgs(string(crawler.StatusProcessed), "https://upsc.gov.in/advt.pdf").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.AdvanceCandidate(context.Background(), "https://upsc.gov.in/advt.pdf", crawler.StatusProcessed)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceCandidate_UnknownURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE candidates").
		WithArgs(string(crawler.StatusIgnored), "https://nowhere.gov.in/x.pdf").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.AdvanceCandidate(context.Background(), "https://nowhere.gov.in/x.pdf", crawler.StatusIgnored)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestListCandidates_ReturnsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{"source_id", "title", "url", "discovered_at", "status"}).
		AddRow("upsc", "Advt 1", "https://upsc.gov.in/1.pdf", now, "NEW").
		AddRow("ssc", "Advt 2", "https://ssc.gov.in/2.pdf", now, "NEW")

	mock.ExpectQuery("SELECT source_id, title, url, discovered_at, status").
		WithArgs(string(crawler.StatusNew), 10).
		WillReturnRows(rows)

	got, err := store.ListCandidates(context.Background(), crawler.StatusNew, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "upsc", got[0].SourceID)
	require.Equal(t, crawler.StatusNew, got[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertJob_WritesPayload(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	posting := extractor.JobPosting{
		Title:        "CGL 2026",
		Organization: "SSC",
		Category:     "central",
		VacancyCount: 17727,
	}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("cgl-2026", posting.Title, posting.Organization, posting.Category, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertJob(context.Background(), "cgl-2026", posting))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertJob_RequiresSlug(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	err = store.UpsertJob(context.Background(), "", extractor.JobPosting{Title: "x"})
	require.Error(t, err)
}

func TestNewWithPool_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil)
	require.Error(t, err)
}
