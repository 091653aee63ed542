package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/sensor.sim/internal/session"
)

var (
	// ErrSessionNotFound is returned when a session id has no stored row.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNonFinite is returned when a session holds NaN or Inf values.
	// sqlite stores NaN as NULL, so such a session cannot round-trip.
	ErrNonFinite = errors.New("session contains non-finite values")
)

// SaveSession stores a finished session and its record log in one
// transaction. Kalman columns are NULL for records without estimator
// output. Sessions holding NaN or Inf are rejected with ErrNonFinite.
func (db *DB) SaveSession(ctx context.Context, sum session.Summary, records []session.Record) error {
	if sum.ID == uuid.Nil {
		return errors.New("cannot save session without an id")
	}
	if err := checkFinite(sum, records); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var meanEst sql.NullFloat64
	if sum.MeanEstimateError != nil {
		meanEst = sql.NullFloat64{Float64: *sum.MeanEstimateError, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, mode, started_at_ns, stopped_at_ns, record_count,
			mean_abs_error, std_abs_error, max_abs_error, mean_estimate_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID.String(), sum.Mode.String(), sum.StartedAt.UnixNano(), sum.StoppedAt.UnixNano(), sum.Count,
		sum.MeanAbsoluteError, sum.StdAbsoluteError, sum.MaxAbsoluteError, meanEst,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", sum.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_records (
			session_id, row_index, elapsed_seconds, timestamp_ns,
			true_temperature, measured_temperature, absolute_error,
			iteration, gain, estimate, updated_variance,
			predicted_estimate, predicted_variance, estimate_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		var (
			iteration                             sql.NullInt64
			gain, est, updP, predX, predP, estErr sql.NullFloat64
		)
		if k := r.Kalman; k != nil {
			iteration = sql.NullInt64{Int64: int64(k.Iteration), Valid: true}
			gain = sql.NullFloat64{Float64: k.Gain, Valid: true}
			est = sql.NullFloat64{Float64: k.Estimate, Valid: true}
			updP = sql.NullFloat64{Float64: k.UpdatedVariance, Valid: true}
			predX = sql.NullFloat64{Float64: k.PredictedEstimate, Valid: true}
			predP = sql.NullFloat64{Float64: k.PredictedVariance, Valid: true}
			estErr = sql.NullFloat64{Float64: k.EstimateError, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			sum.ID.String(), i, r.ElapsedSeconds, r.Timestamp.UnixNano(),
			r.TrueTemperature, r.MeasuredTemperature, r.AbsoluteError,
			iteration, gain, est, updP, predX, predP, estErr,
		); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", sum.ID, err)
	}
	return nil
}

// ListSessions returns stored session summaries, most recent first. A limit
// of zero or less returns all of them.
func (db *DB) ListSessions(ctx context.Context, limit int) ([]session.Summary, error) {
	query := `
		SELECT session_id, mode, started_at_ns, stopped_at_ns, record_count,
		       mean_abs_error, std_abs_error, max_abs_error, mean_estimate_error
		FROM sessions
		ORDER BY started_at_ns DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetSession returns one stored session summary.
func (db *DB) GetSession(ctx context.Context, id uuid.UUID) (session.Summary, error) {
	row := db.QueryRowContext(ctx, `
		SELECT session_id, mode, started_at_ns, stopped_at_ns, record_count,
		       mean_abs_error, std_abs_error, max_abs_error, mean_estimate_error
		FROM sessions WHERE session_id = ?`, id.String())
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Summary{}, ErrSessionNotFound
	}
	return sum, err
}

// SessionRecords returns the stored record log of a session in order.
func (db *DB) SessionRecords(ctx context.Context, id uuid.UUID) ([]session.Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT elapsed_seconds, timestamp_ns, true_temperature, measured_temperature,
		       absolute_error, iteration, gain, estimate, updated_variance,
		       predicted_estimate, predicted_variance, estimate_error
		FROM session_records
		WHERE session_id = ?
		ORDER BY row_index`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []session.Record
	for rows.Next() {
		var (
			r                                     session.Record
			tsNanos                               int64
			iteration                             sql.NullInt64
			gain, est, updP, predX, predP, estErr sql.NullFloat64
		)
		if err := rows.Scan(&r.ElapsedSeconds, &tsNanos, &r.TrueTemperature, &r.MeasuredTemperature,
			&r.AbsoluteError, &iteration, &gain, &est, &updP, &predX, &predP, &estErr); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Timestamp = time.Unix(0, tsNanos).UTC()
		if iteration.Valid {
			r.Kalman = &session.KalmanFields{
				Iteration:         int(iteration.Int64),
				Gain:              gain.Float64,
				Estimate:          est.Float64,
				UpdatedVariance:   updP.Float64,
				PredictedEstimate: predX.Float64,
				PredictedVariance: predP.Float64,
				EstimateError:     estErr.Float64,
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its records.
func (db *DB) DeleteSession(ctx context.Context, id uuid.UUID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func checkFinite(sum session.Summary, records []session.Record) error {
	vals := []float64{sum.MeanAbsoluteError, sum.StdAbsoluteError, sum.MaxAbsoluteError}
	if sum.MeanEstimateError != nil {
		vals = append(vals, *sum.MeanEstimateError)
	}
	if !allFinite(vals...) {
		return fmt.Errorf("session %s summary: %w", sum.ID, ErrNonFinite)
	}
	for i, r := range records {
		if !allFinite(r.ElapsedSeconds, r.TrueTemperature, r.MeasuredTemperature, r.AbsoluteError) {
			return fmt.Errorf("session %s record %d: %w", sum.ID, i, ErrNonFinite)
		}
		if k := r.Kalman; k != nil && !allFinite(k.Gain, k.Estimate, k.UpdatedVariance,
			k.PredictedEstimate, k.PredictedVariance, k.EstimateError) {
			return fmt.Errorf("session %s record %d: %w", sum.ID, i, ErrNonFinite)
		}
	}
	return nil
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSummary(s scanner) (session.Summary, error) {
	var (
		sum              session.Summary
		id, mode         string
		started, stopped int64
		meanEst          sql.NullFloat64
	)
	if err := s.Scan(&id, &mode, &started, &stopped, &sum.Count,
		&sum.MeanAbsoluteError, &sum.StdAbsoluteError, &sum.MaxAbsoluteError, &meanEst); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sum, err
		}
		return sum, fmt.Errorf("failed to scan session: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return sum, fmt.Errorf("invalid session id %q: %w", id, err)
	}
	m, ok := session.ParseMode(mode)
	if !ok {
		return sum, fmt.Errorf("invalid session mode %q", mode)
	}
	sum.ID = parsed
	sum.Mode = m
	sum.StartedAt = time.Unix(0, started).UTC()
	sum.StoppedAt = time.Unix(0, stopped).UTC()
	if meanEst.Valid {
		v := meanEst.Float64
		sum.MeanEstimateError = &v
	}
	return sum, nil
}
