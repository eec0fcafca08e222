package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"balkly_rewards/internal/domain/checkin/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCheckInRepository(db)

	mock.ExpectQuery(`INSERT INTO "check_ins"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("c-1"))

	checkIn := &model.CheckIn{UserID: "u-1", PartnerID: "p-1", CheckedInAt: time.Now()}
	err := repo.Create(context.Background(), checkIn)

	require.NoError(t, err)
	assert.NotEmpty(t, checkIn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCheckInRepository(db)

		at := since.Add(9 * time.Hour)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "check_ins" WHERE user_id = $1 AND partner_id = $2 AND checked_in_at >= $3 ORDER BY checked_in_at DESC`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "partner_id", "checked_in_at"}).
				AddRow("c-1", "u-1", "p-1", at))

		checkIn, err := repo.FindSince(context.Background(), "u-1", "p-1", since)

		require.NoError(t, err)
		assert.Equal(t, "c-1", checkIn.ID)
		assert.Equal(t, at, checkIn.CheckedInAt)
	})

	t.Run("Not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCheckInRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "check_ins"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindSince(context.Background(), "u-1", "p-1", since)

		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestDailyCounts(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()
	repo := NewStatsRepository(sqlx.NewDb(sqlDB, "pgx"))

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day1 := since
	day2 := since.Add(24 * time.Hour)

	t.Run("Groups by day", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM check_ins`)).
			WithArgs("p-1", since).
			WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).
				AddRow(day1, 4).
				AddRow(day2, 9))

		stats, err := repo.DailyCounts(context.Background(), "p-1", since)

		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, day2, stats[1].Day)
		assert.Equal(t, int64(9), stats[1].Count)
	})

	t.Run("Empty range is an empty slice", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM check_ins`)).
			WithArgs("p-1", since).
			WillReturnRows(sqlmock.NewRows([]string{"day", "count"}))

		stats, err := repo.DailyCounts(context.Background(), "p-1", since)

		require.NoError(t, err)
		assert.NotNil(t, stats)
		assert.Empty(t, stats)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
