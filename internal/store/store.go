// Package store persists runs, visited profiles, the target profile and the
// trigger rule in sqlite. The profiles table enforces the system-wide
// external-id uniqueness the engine's dedup relies on.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jumperz11/Linkdinscrap/internal/models"
)

type Store struct{ db *sql.DB }

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmt := `
CREATE TABLE IF NOT EXISTS profiles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	run_id TEXT NOT NULL,
	name TEXT,
	headline TEXT,
	company TEXT,
	location TEXT,
	detail TEXT,
	score INTEGER NOT NULL,
	reason TEXT,
	category TEXT NOT NULL,
	action TEXT NOT NULL,
	message TEXT,
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	keywords TEXT NOT NULL,
	status TEXT NOT NULL,
	score_threshold INTEGER NOT NULL,
	max_profiles INTEGER NOT NULL,
	max_duration_sec INTEGER NOT NULL,
	enable_connect INTEGER NOT NULL,
	enable_follow INTEGER NOT NULL,
	visited INTEGER NOT NULL DEFAULT 0,
	connected INTEGER NOT NULL DEFAULT 0,
	followed INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	started_at DATETIME NOT NULL,
	ended_at DATETIME
);
CREATE TABLE IF NOT EXISTS target_profile (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	name TEXT NOT NULL,
	headline TEXT,
	industry TEXT,
	expertise TEXT,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS trigger_rule (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	enabled INTEGER NOT NULL,
	times TEXT NOT NULL,
	days TEXT NOT NULL,
	keywords TEXT,
	updated_at DATETIME NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Exists reports whether a profile with this external id was ever recorded,
// in any run.
func (s *Store) Exists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE external_id = ?`, externalID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SaveProfile inserts a visited-profile record. A duplicate external id is
// ignored, keeping the first record authoritative.
func (s *Store) SaveProfile(ctx context.Context, p *models.ProfileRecord) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO profiles
		(external_id, run_id, name, headline, company, location, detail, score, reason, category, action, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		p.ExternalID, p.RunID, p.Name, p.Headline, p.Company, p.Location, p.Detail,
		p.Score, p.Reason, string(p.Category), string(p.Action), p.Message, p.CreatedAt)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	p.ID = id
	return nil
}

func (s *Store) CreateRun(ctx context.Context, r *models.Run) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(id, keywords, status, score_threshold, max_profiles, max_duration_sec, enable_connect, enable_follow, visited, connected, followed, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Config.Keywords, string(r.Status), r.Config.ScoreThreshold, r.Config.MaxProfiles,
		int(r.Config.MaxDuration.Seconds()), boolInt(r.Config.EnableConnect), boolInt(r.Config.EnableFollow),
		r.Visited, r.Connected, r.Followed, r.Error, r.StartedAt)
	return err
}

// UpdateRun writes the mutable run fields: counters, status, error, end time.
func (s *Store) UpdateRun(ctx context.Context, r *models.Run) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET
		status = ?, visited = ?, connected = ?, followed = ?, error = ?, ended_at = ?
		WHERE id = ?`,
		string(r.Status), r.Visited, r.Connected, r.Followed, r.Error, r.EndedAt, r.ID)
	return err
}

// RunsSince returns runs started at or after since, newest first.
func (s *Store) RunsSince(ctx context.Context, since time.Time) ([]models.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, keywords, status, score_threshold, max_profiles, max_duration_sec,
		enable_connect, enable_follow, visited, connected, followed, error, started_at, ended_at
		FROM runs WHERE started_at >= ? ORDER BY started_at DESC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, keywords, status, score_threshold, max_profiles, max_duration_sec,
		enable_connect, enable_follow, visited, connected, followed, error, started_at, ended_at
		FROM runs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, sql.ErrNoRows
	}
	r, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRun(rows *sql.Rows) (models.Run, error) {
	var r models.Run
	var status string
	var durSec, connect, follow int
	var errStr sql.NullString
	var ended sql.NullTime
	if err := rows.Scan(&r.ID, &r.Config.Keywords, &status, &r.Config.ScoreThreshold,
		&r.Config.MaxProfiles, &durSec, &connect, &follow,
		&r.Visited, &r.Connected, &r.Followed, &errStr, &r.StartedAt, &ended); err != nil {
		return r, err
	}
	r.Status = models.RunStatus(status)
	r.Config.MaxDuration = time.Duration(durSec) * time.Second
	r.Config.EnableConnect = connect != 0
	r.Config.EnableFollow = follow != 0
	r.Error = errStr.String
	if ended.Valid {
		t := ended.Time
		r.EndedAt = &t
	}
	return r, nil
}

// ProfilesByRun returns the records a run produced, oldest first.
func (s *Store) ProfilesByRun(ctx context.Context, runID string) ([]models.ProfileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
		id, external_id, run_id, name, headline, company, location, detail,
		score, reason, category, action, message, created_at
		FROM profiles WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ProfileRecord
	for rows.Next() {
		var p models.ProfileRecord
		var category, action string
		if err := rows.Scan(&p.ID, &p.ExternalID, &p.RunID, &p.Name, &p.Headline,
			&p.Company, &p.Location, &p.Detail, &p.Score, &p.Reason,
			&category, &action, &p.Message, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Category = models.Category(category)
		p.Action = models.Action(action)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveTargetProfile overwrites the singleton target profile wholesale.
func (s *Store) SaveTargetProfile(ctx context.Context, t *models.TargetProfile) error {
	expertise, err := json.Marshal(t.Expertise)
	if err != nil {
		return err
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO target_profile (id, name, headline, industry, expertise, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		name=excluded.name, headline=excluded.headline, industry=excluded.industry,
		expertise=excluded.expertise, updated_at=excluded.updated_at`,
		t.Name, t.Headline, t.Industry, string(expertise), t.UpdatedAt)
	return err
}

// GetTargetProfile returns nil without error when no analysis has run yet.
func (s *Store) GetTargetProfile(ctx context.Context) (*models.TargetProfile, error) {
	var t models.TargetProfile
	var expertise string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, headline, industry, expertise, updated_at FROM target_profile WHERE id = 1`).
		Scan(&t.Name, &t.Headline, &t.Industry, &expertise, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if expertise != "" {
		_ = json.Unmarshal([]byte(expertise), &t.Expertise)
	}
	return &t, nil
}

// SaveTriggerRule replaces the singleton rule wholesale.
func (s *Store) SaveTriggerRule(ctx context.Context, r models.TriggerRule) error {
	times, err := json.Marshal(r.Times)
	if err != nil {
		return err
	}
	days, err := json.Marshal(r.Days)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO trigger_rule (id, enabled, times, days, keywords, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		enabled=excluded.enabled, times=excluded.times, days=excluded.days,
		keywords=excluded.keywords, updated_at=excluded.updated_at`,
		boolInt(r.Enabled), string(times), string(days), r.Keywords, time.Now())
	return err
}

// GetTriggerRule returns nil without error when no rule has been saved yet.
func (s *Store) GetTriggerRule(ctx context.Context) (*models.TriggerRule, error) {
	var r models.TriggerRule
	var enabled int
	var times, days string
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled, times, days, keywords FROM trigger_rule WHERE id = 1`).
		Scan(&enabled, &times, &days, &r.Keywords)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(times), &r.Times); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(days), &r.Days); err != nil {
		return nil, err
	}
	return &r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
