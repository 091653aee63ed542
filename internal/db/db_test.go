package db

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sensor.sim/internal/monitoring"
	"github.com/banshee-data/sensor.sim/internal/session"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	db, err := NewDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var started = time.Date(2026, 8, 12, 10, 0, 0, 123456789, time.UTC)

func kalmanSession() (session.Summary, []session.Record) {
	meanEst := 0.0042
	sum := session.Summary{
		ID:                uuid.New(),
		Mode:              session.ModeKalman,
		StartedAt:         started,
		StoppedAt:         started.Add(10 * time.Second),
		Count:             3,
		MeanAbsoluteError: 0.03,
		StdAbsoluteError:  0.01,
		MaxAbsoluteError:  0.04,
		MeanEstimateError: &meanEst,
	}
	records := make([]session.Record, 3)
	for i := range records {
		records[i] = session.Record{
			ElapsedSeconds:      float64(i) * 5,
			Timestamp:           started.Add(time.Duration(i) * 5 * time.Second),
			TrueTemperature:     25,
			MeasuredTemperature: 25.02 + float64(i)*0.01,
			AbsoluteError:       0.02 + float64(i)*0.01,
			Kalman: &session.KalmanFields{
				Iteration:         i + 1,
				Gain:              0.5 / float64(i+1),
				Estimate:          25.01,
				UpdatedVariance:   0.01,
				PredictedEstimate: 25.01,
				PredictedVariance: 0.0101,
				EstimateError:     0.01,
			},
		}
	}
	return sum, records
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	assert.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)
}

func TestMigrations(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	defer func() { monitoring.Logf = original }()

	db, err := OpenDB(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	defer db.Close()
	migrations := MigrationsFS()

	latest, err := LatestMigrationVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	status, err := db.GetMigrationStatus(migrations)
	require.NoError(t, err)
	assert.Equal(t, MigrationStatus{CurrentVersion: 0, LatestVersion: 2}, status)
	assert.True(t, status.Pending())

	require.NoError(t, db.MigrateUp(migrations))
	// running again is a no-op
	require.NoError(t, db.MigrateUp(migrations))

	version, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown(migrations))
	version, _, err = db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var indexCount int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name='idx_sessions_started_at'`,
	).Scan(&indexCount))
	assert.Zero(t, indexCount)

	require.NoError(t, db.MigrateForce(migrations, 2))
	status, err = db.GetMigrationStatus(migrations)
	require.NoError(t, err)
	assert.False(t, status.Pending())
}

func TestSaveSession_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sum, records := kalmanSession()

	require.NoError(t, db.SaveSession(ctx, sum, records))

	got, err := db.GetSession(ctx, sum.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(sum, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	gotRecords, err := db.SessionRecords(ctx, sum.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(records, gotRecords); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveSession_PlainHasNullKalmanColumns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sum := session.Summary{ID: uuid.New(), Mode: session.ModePlain, StartedAt: started, StoppedAt: started, Count: 1}
	records := []session.Record{{Timestamp: started, TrueTemperature: 25, MeasuredTemperature: 25.01, AbsoluteError: 0.01}}

	require.NoError(t, db.SaveSession(ctx, sum, records))

	var nulls int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM session_records WHERE session_id = ? AND gain IS NULL AND estimate IS NULL`,
		sum.ID.String(),
	).Scan(&nulls))
	assert.Equal(t, 1, nulls)

	got, err := db.GetSession(ctx, sum.ID)
	require.NoError(t, err)
	assert.Nil(t, got.MeanEstimateError)

	gotRecords, err := db.SessionRecords(ctx, sum.ID)
	require.NoError(t, err)
	require.Len(t, gotRecords, 1)
	assert.Nil(t, gotRecords[0].Kalman)
}

func TestSaveSession_Errors(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	assert.Error(t, db.SaveSession(ctx, session.Summary{}, nil))

	sum, records := kalmanSession()
	require.NoError(t, db.SaveSession(ctx, sum, records))
	// duplicate id rolls back
	assert.Error(t, db.SaveSession(ctx, sum, records))

	got, err := db.SessionRecords(ctx, sum.ID)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSaveSession_RejectsNonFinite(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*session.Summary, []session.Record)
	}{
		{"nan summary", func(s *session.Summary, _ []session.Record) { s.MeanAbsoluteError = math.NaN() }},
		{"inf max error", func(s *session.Summary, _ []session.Record) { s.MaxAbsoluteError = math.Inf(1) }},
		{"nan estimate error", func(s *session.Summary, _ []session.Record) {
			v := math.NaN()
			s.MeanEstimateError = &v
		}},
		{"nan measurement", func(_ *session.Summary, r []session.Record) { r[1].MeasuredTemperature = math.NaN() }},
		{"nan gain", func(_ *session.Summary, r []session.Record) { r[2].Kalman.Gain = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			ctx := context.Background()
			sum, records := kalmanSession()
			tt.mutate(&sum, records)

			assert.ErrorIs(t, db.SaveSession(ctx, sum, records), ErrNonFinite)
			_, err := db.GetSession(ctx, sum.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

func TestListAndDeleteSessions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		sum, records := kalmanSession()
		sum.StartedAt = started.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.SaveSession(ctx, sum, records))
		ids = append(ids, sum.ID)
	}

	all, err := db.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "most recent first")

	limited, err := db.ListSessions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, db.DeleteSession(ctx, ids[0]))
	_, err = db.GetSession(ctx, ids[0])
	assert.True(t, errors.Is(err, ErrSessionNotFound))

	records, err := db.SessionRecords(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, records, "records cascade with the session")

	assert.ErrorIs(t, db.DeleteSession(ctx, ids[0]), ErrSessionNotFound)
}
