package reflection

// #region imports
import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// #endregion imports

// #region types

// Record is one persisted reflection.
type Record struct {
	TurnID           string
	PersonaID        string
	Reflection       string
	IntegrityDelta   float64
	ReflectionHonest bool
	Violations       []string
	CreatedAt        time.Time
}

// #endregion types

// #region store

// Store persists reflections in SQLite, one row per evaluated turn.
type Store struct {
	db *sql.DB
}

// NewStore creates the reflections table if needed and returns a store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, fmt.Errorf("init reflections: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS reflections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT NOT NULL,
		persona_id TEXT NOT NULL,
		reflection_text TEXT NOT NULL,
		integrity_delta REAL NOT NULL,
		reflection_honest INTEGER NOT NULL,
		violations_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

// Save stores the feedback produced for a turn.
func (s *Store) Save(turnID, personaID string, fb Feedback) error {
	violations, err := json.Marshal(orEmpty(fb.Violations))
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO reflections (turn_id, persona_id, reflection_text, integrity_delta, reflection_honest, violations_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turnID, personaID, fb.Reflection, fb.IntegrityDelta, fb.ReflectionHonest, string(violations),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save reflection: %w", err)
	}
	return nil
}

// Latest returns the most recent reflection for personaID (any persona when
// empty), or nil if none exists.
func (s *Store) Latest(personaID string) (*Record, error) {
	query := `SELECT turn_id, persona_id, reflection_text, integrity_delta, reflection_honest, violations_json, created_at
		FROM reflections`
	var args []any
	if personaID != "" {
		query += ` WHERE persona_id = ?`
		args = append(args, personaID)
	}
	query += ` ORDER BY id DESC LIMIT 1`

	var r Record
	var violations, createdAt string
	err := s.db.QueryRow(query, args...).Scan(
		&r.TurnID, &r.PersonaID, &r.Reflection, &r.IntegrityDelta, &r.ReflectionHonest, &violations, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest reflection: %w", err)
	}
	if err := json.Unmarshal([]byte(violations), &r.Violations); err != nil {
		return nil, fmt.Errorf("decode violations: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("reflection %s created_at: %w", r.TurnID, err)
	}
	r.CreatedAt = at
	return &r, nil
}

// #endregion store

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
