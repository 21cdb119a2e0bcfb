// Package trialdb stores experiment sessions, trials and rankings in
// sqlite. It is the experiment-management layer's persistence: it records
// which rendering parameters each trial ran with and how participants
// ranked them, and never touches the renderer beyond the snapshots it is
// handed.
package trialdb

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the trial database at path. Run
// MigrateUp before first use.
func NewDB(path string) (*DB, error) {
	// sqlite leaves foreign keys off unless asked; the schema relies on them.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open trial database: %w", err)
	}
	return &DB{db}, nil
}

// Session is one participant's sitting.
type Session struct {
	SessionID   string    `json:"session_id"`
	Participant string    `json:"participant"`
	CreatedAt   time.Time `json:"created_at"`
}

// Trial is one rendering condition presented during a session.
type Trial struct {
	TrialID    string     `json:"trial_id"`
	SessionID  string     `json:"session_id"`
	TopologyID string     `json:"topology_id"`
	ParamsJSON string     `json:"params_json"`
	SpeedDeg   float64    `json:"speed_deg_per_sec"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Ranking is one participant judgement of a completed trial.
type Ranking struct {
	RankingID int64     `json:"ranking_id"`
	TrialID   string    `json:"trial_id"`
	Rank      int       `json:"rank"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSession inserts a new session and returns it.
func (db *DB) CreateSession(participant string) (*Session, error) {
	s := &Session{
		SessionID:   uuid.New().String(),
		Participant: participant,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, participant, created_at) VALUES (?, ?, ?)`,
		s.SessionID, s.Participant, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

// StartTrial records a new trial against a session, capturing the applied
// parameter snapshot as JSON.
func (db *DB) StartTrial(sessionID, topologyID, paramsJSON string, speedDeg float64) (*Trial, error) {
	t := &Trial{
		TrialID:    uuid.New().String(),
		SessionID:  sessionID,
		TopologyID: topologyID,
		ParamsJSON: paramsJSON,
		SpeedDeg:   speedDeg,
		StartedAt:  time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO trials (trial_id, session_id, topology_id, params_json, speed_deg_per_sec, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.TrialID, t.SessionID, t.TopologyID, t.ParamsJSON, t.SpeedDeg, t.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert trial: %w", err)
	}
	return t, nil
}

// EndTrial stamps the trial's end time.
func (db *DB) EndTrial(trialID string) error {
	res, err := db.Exec(
		`UPDATE trials SET ended_at = ? WHERE trial_id = ? AND ended_at IS NULL`,
		time.Now().UTC(), trialID,
	)
	if err != nil {
		return fmt.Errorf("failed to end trial: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("trial %s not found or already ended", trialID)
	}
	return nil
}

// RecordRanking stores one participant ranking for a trial.
func (db *DB) RecordRanking(trialID string, rank int, note string) (*Ranking, error) {
	now := time.Now().UTC()
	res, err := db.Exec(
		`INSERT INTO rankings (trial_id, rank_order, note, created_at) VALUES (?, ?, ?, ?)`,
		trialID, rank, note, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ranking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Ranking{RankingID: id, TrialID: trialID, Rank: rank, Note: note, CreatedAt: now}, nil
}

// GetSession returns a session with its trials, newest trial first.
func (db *DB) GetSession(sessionID string) (*Session, []Trial, error) {
	s := &Session{}
	err := db.QueryRow(
		`SELECT session_id, participant, created_at FROM sessions WHERE session_id = ?`,
		sessionID,
	).Scan(&s.SessionID, &s.Participant, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query session: %w", err)
	}

	rows, err := db.Query(
		`SELECT trial_id, session_id, topology_id, params_json, speed_deg_per_sec, started_at, ended_at
		 FROM trials WHERE session_id = ? ORDER BY started_at DESC`,
		sessionID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query trials: %w", err)
	}
	defer rows.Close()

	var trials []Trial
	for rows.Next() {
		var t Trial
		if err := rows.Scan(&t.TrialID, &t.SessionID, &t.TopologyID, &t.ParamsJSON, &t.SpeedDeg, &t.StartedAt, &t.EndedAt); err != nil {
			return nil, nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		trials = append(trials, t)
	}
	return s, trials, rows.Err()
}

// ListRankings returns all rankings for a trial in insertion order.
func (db *DB) ListRankings(trialID string) ([]Ranking, error) {
	rows, err := db.Query(
		`SELECT ranking_id, trial_id, rank_order, note, created_at FROM rankings WHERE trial_id = ? ORDER BY ranking_id`,
		trialID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer rows.Close()

	var rankings []Ranking
	for rows.Next() {
		var r Ranking
		if err := rows.Scan(&r.RankingID, &r.TrialID, &r.Rank, &r.Note, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		rankings = append(rankings, r)
	}
	return rankings, rows.Err()
}
