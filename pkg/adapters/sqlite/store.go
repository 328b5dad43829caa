// Package sqlite persists sessions in SQLite through the pure Go modernc driver.
//
// A session is spread over four tables: the session row, its field values,
// its phase visits and its loop family timers. Save replaces all of them in a
// single transaction. Phase graph definitions can be stored alongside and
// served back as a ports.GraphSource.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/phasewise/pkg/domain"
	"github.com/aretw0/phasewise/pkg/graph"
	"github.com/aretw0/phasewise/pkg/schema"
	_ "modernc.org/sqlite"
)

const pragmas = "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Store implements ports.SessionStore on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored session.
func (s *Store) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions (id, graph_name, current_phase, completed, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	graph_name = excluded.graph_name,
	current_phase = excluded.current_phase,
	completed = excluded.completed,
	updated_at = excluded.updated_at
`,
		sessionID, sess.GraphName, sess.CurrentPhase, sess.Completed,
		millis(sess.CreatedAt), millis(sess.UpdatedAt),
	); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	for _, table := range []string{"session_field_values", "session_phase_states", "session_family_timers"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for name, v := range sess.Fields {
		raw, err := json.Marshal(v.Value)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_field_values (session_id, name, phase_id, value, value_type, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`, sessionID, name, v.PhaseID, string(raw), string(v.ValueType), millis(v.UpdatedAt)); err != nil {
			return fmt.Errorf("save field %s: %w", name, err)
		}
	}

	for _, visit := range sess.Visits {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_phase_states (
	session_id, seq, phase_id, message_count, started_at, ended_at, duration_ms,
	last_message_at, requirements_met, minimum_turns_met, can_transition
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			sessionID, visit.Seq, visit.PhaseID, visit.MessageCount,
			millis(visit.StartedAt), nullMillis(visit.EndedAt), visit.Duration.Milliseconds(),
			nullMillis(visit.LastMessageAt), visit.RequirementsMet, visit.MinimumTurnsMet, visit.CanTransition,
		); err != nil {
			return fmt.Errorf("save visit %d: %w", visit.Seq, err)
		}
	}

	for family, timer := range sess.Timers {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_family_timers (session_id, family, accumulated_ms, loop_count)
VALUES (?, ?, ?, ?)
`, sessionID, family, timer.Accumulated.Milliseconds(), timer.LoopCount); err != nil {
			return fmt.Errorf("save timer %s: %w", family, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Load reads the session and all its rows.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	var (
		sess             domain.Session
		created, updated int64
		completed        bool
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, graph_name, current_phase, completed, created_at, updated_at
FROM sessions WHERE id = ?
`, sessionID).Scan(&sess.ID, &sess.GraphName, &sess.CurrentPhase, &completed, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	sess.Completed = completed
	sess.CreatedAt = fromMillis(created)
	sess.UpdatedAt = fromMillis(updated)

	if sess.Fields, err = s.loadFields(ctx, sessionID); err != nil {
		return nil, err
	}
	if sess.Visits, err = s.loadVisits(ctx, sessionID); err != nil {
		return nil, err
	}
	if sess.Timers, err = s.loadTimers(ctx, sessionID); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) loadFields(ctx context.Context, sessionID string) (map[string]domain.SessionFieldValue, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, phase_id, value, value_type, updated_at
FROM session_field_values WHERE session_id = ?
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	defer rows.Close()

	fields := make(map[string]domain.SessionFieldValue)
	for rows.Next() {
		var (
			v         domain.SessionFieldValue
			raw, typ  string
			updatedAt int64
		)
		if err := rows.Scan(&v.Name, &v.PhaseID, &raw, &typ, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		v.ValueType = schema.Type(typ)
		v.UpdatedAt = fromMillis(updatedAt)
		if v.Value, err = domain.DecodeFieldValue(v.ValueType, []byte(raw)); err != nil {
			return nil, fmt.Errorf("decode field %s: %w", v.Name, err)
		}
		fields[v.Name] = v
	}
	return fields, rows.Err()
}

func (s *Store) loadVisits(ctx context.Context, sessionID string) ([]domain.SessionPhaseState, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, phase_id, message_count, started_at, ended_at, duration_ms,
	last_message_at, requirements_met, minimum_turns_met, can_transition
FROM session_phase_states WHERE session_id = ?
ORDER BY seq
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load visits: %w", err)
	}
	defer rows.Close()

	var visits []domain.SessionPhaseState
	for rows.Next() {
		var (
			v                 domain.SessionPhaseState
			started, duration int64
			ended, last       sql.NullInt64
		)
		if err := rows.Scan(&v.Seq, &v.PhaseID, &v.MessageCount, &started, &ended, &duration,
			&last, &v.RequirementsMet, &v.MinimumTurnsMet, &v.CanTransition); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		v.StartedAt = fromMillis(started)
		v.EndedAt = fromNullMillis(ended)
		v.LastMessageAt = fromNullMillis(last)
		v.Duration = time.Duration(duration) * time.Millisecond
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (s *Store) loadTimers(ctx context.Context, sessionID string) (map[string]domain.FamilyTimer, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT family, accumulated_ms, loop_count
FROM session_family_timers WHERE session_id = ?
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load timers: %w", err)
	}
	defer rows.Close()

	timers := make(map[string]domain.FamilyTimer)
	for rows.Next() {
		var (
			family string
			acc    int64
			timer  domain.FamilyTimer
		)
		if err := rows.Scan(&family, &acc, &timer.LoopCount); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		timer.Accumulated = time.Duration(acc) * time.Millisecond
		timers[family] = timer
	}
	return timers, rows.Err()
}

// Delete removes the session. Child rows cascade.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns stored session IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveDefinition stores a phase graph definition under its name.
func (s *Store) SaveDefinition(ctx context.Context, def graph.Definition) error {
	if def.Name == "" {
		return fmt.Errorf("graph name is required")
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode graph %s: %w", def.Name, err)
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO graph_definitions (name, definition, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET definition = excluded.definition, updated_at = excluded.updated_at
`, def.Name, string(raw), millis(time.Now())); err != nil {
		return fmt.Errorf("save graph %s: %w", def.Name, err)
	}
	return nil
}

// Source returns a ports.GraphSource reading the stored definition name.
func (s *Store) Source(name string) *GraphSource {
	return &GraphSource{db: s.db, name: name}
}

// GraphSource serves a definition stored with SaveDefinition.
type GraphSource struct {
	db   *sql.DB
	name string
}

// Load reads and decodes the stored definition.
func (g *GraphSource) Load(ctx context.Context) (graph.Definition, error) {
	var raw string
	err := g.db.QueryRowContext(ctx, "SELECT definition FROM graph_definitions WHERE name = ?", g.name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.Definition{}, fmt.Errorf("graph %s is not stored", g.name)
	}
	if err != nil {
		return graph.Definition{}, fmt.Errorf("load graph %s: %w", g.name, err)
	}
	return graph.ParseJSON([]byte(raw))
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: millis(*t), Valid: true}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}
