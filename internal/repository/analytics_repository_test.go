package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsRepositoryEnrollmentsPerProgram(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN health_programs p ON p.id = e.program_id")).
		WillReturnRows(sqlmock.NewRows([]string{"program_id", "program_name", "count"}).
			AddRow("p1", "Asthma", 2).
			AddRow("p2", "Diabetes", 1))

	counts, err := repo.EnrollmentsPerProgram(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "Asthma", counts[0].ProgramName)
	assert.Equal(t, 2, counts[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryDailyEnrollments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE enrollment_date >= $1")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).AddRow("2024-05-03", 4))

	counts, err := repo.DailyEnrollments(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "2024-05-03", counts[0].Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryCountClients(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnalyticsRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM clients")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	total, err := repo.CountClients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
