package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/sweeper/internal/sweep"
)

// ErrSweepNotFound is returned when no sweep has the requested ID.
var ErrSweepNotFound = errors.New("sweep not found")

// SweepRecord is one stored sweep session.
type SweepRecord struct {
	ID          string       `json:"id"`
	Mode        sweep.Mode   `json:"mode"`
	Config      sweep.Config `json:"config"`
	Status      sweep.Status `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	AnalyzerID  string       `json:"analyzer_id,omitempty"`
	GeneratorID string       `json:"generator_id,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	PointCount  int          `json:"point_count"`
}

// CreateSweep stores a new running session.
func (db *DB) CreateSweep(rec SweepRecord) error {
	c := rec.Config
	status := rec.Status
	if status == "" {
		status = sweep.StatusRunning
	}
	_, err := db.Exec(`
		INSERT INTO sweeps (
			sweep_id, mode, start_hz, stop_hz, points, rbw_hz, power_dbm,
			offset_hz, tracking_disabled, status, analyzer_id, generator_id,
			started_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Mode), c.StartHz, c.StopHz, c.Points, c.RBWHz, c.PowerDBm,
		c.OffsetHz, c.TrackingDisabled, string(status), rec.AnalyzerID, rec.GeneratorID,
		rec.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sweep %s: %w", rec.ID, err)
	}
	return nil
}

// RecordPoint stores the seq-th measurement (from 1) of a sweep.
func (db *DB) RecordPoint(sweepID string, seq int, p sweep.Point) error {
	_, err := db.Exec(
		`INSERT INTO sweep_points (sweep_id, seq, frequency_hz, power_dbm) VALUES (?, ?, ?, ?)`,
		sweepID, seq, p.Frequency, p.Power,
	)
	if err != nil {
		return fmt.Errorf("failed to insert point %d of sweep %s: %w", seq, sweepID, err)
	}
	return nil
}

// FinishSweep records the terminal status of a sweep.
func (db *DB) FinishSweep(sweepID string, status sweep.Status, reason string, finishedAt time.Time) error {
	res, err := db.Exec(
		`UPDATE sweeps SET status = ?, reason = ?, finished_unix_ns = ? WHERE sweep_id = ?`,
		string(status), reason, finishedAt.UnixNano(), sweepID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish sweep %s: %w", sweepID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sweep %s: %w", sweepID, ErrSweepNotFound)
	}
	return nil
}

const sweepColumns = `
	s.sweep_id, s.mode, s.start_hz, s.stop_hz, s.points, s.rbw_hz, s.power_dbm,
	s.offset_hz, s.tracking_disabled, s.status, s.reason, s.analyzer_id, s.generator_id,
	s.started_unix_ns, s.finished_unix_ns,
	(SELECT COUNT(*) FROM sweep_points p WHERE p.sweep_id = s.sweep_id)`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSweep(row rowScanner) (SweepRecord, error) {
	var (
		rec      SweepRecord
		mode     string
		status   string
		started  int64
		finished sql.NullInt64
	)
	err := row.Scan(
		&rec.ID, &mode, &rec.Config.StartHz, &rec.Config.StopHz, &rec.Config.Points,
		&rec.Config.RBWHz, &rec.Config.PowerDBm, &rec.Config.OffsetHz, &rec.Config.TrackingDisabled,
		&status, &rec.Reason, &rec.AnalyzerID, &rec.GeneratorID,
		&started, &finished, &rec.PointCount,
	)
	if err != nil {
		return SweepRecord{}, err
	}
	rec.Mode = sweep.Mode(mode)
	rec.Status = sweep.Status(status)
	rec.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		rec.FinishedAt = &t
	}
	return rec, nil
}

// Sweep returns one stored sweep.
func (db *DB) Sweep(id string) (SweepRecord, error) {
	row := db.QueryRow(`SELECT `+sweepColumns+` FROM sweeps s WHERE s.sweep_id = ?`, id)
	rec, err := scanSweep(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SweepRecord{}, fmt.Errorf("sweep %s: %w", id, ErrSweepNotFound)
	}
	return rec, err
}

// Sweeps returns up to limit stored sweeps, newest first. limit <= 0 returns
// all of them.
func (db *DB) Sweeps(limit int) ([]SweepRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT `+sweepColumns+` FROM sweeps s ORDER BY s.started_unix_ns DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SweepRecord{}
	for rows.Next() {
		rec, err := scanSweep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SweepPoints returns the measurements of a sweep in arrival order.
func (db *DB) SweepPoints(id string) ([]sweep.Point, error) {
	if _, err := db.Sweep(id); err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT frequency_hz, power_dbm FROM sweep_points WHERE sweep_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []sweep.Point{}
	for rows.Next() {
		var p sweep.Point
		if err := rows.Scan(&p.Frequency, &p.Power); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteSweep removes a sweep and its points.
func (db *DB) DeleteSweep(id string) error {
	res, err := db.Exec(`DELETE FROM sweeps WHERE sweep_id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sweep %s: %w", id, ErrSweepNotFound)
	}
	return nil
}

// MarkInterrupted fails sweeps left running by a previous process, for
// example after a crash, and returns how many were updated.
func (db *DB) MarkInterrupted(at time.Time) (int64, error) {
	res, err := db.Exec(
		`UPDATE sweeps SET status = ?, reason = ?, finished_unix_ns = ? WHERE status = ?`,
		string(sweep.StatusFailed), "interrupted", at.UnixNano(), string(sweep.StatusRunning),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
