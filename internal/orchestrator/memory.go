package orchestrator

// #region imports
import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielpatrickdp/vowguard/internal/tone"
)

// #endregion

// #region schema

const personaTonesSchema = `
CREATE TABLE IF NOT EXISTS persona_tones (
    persona_id  TEXT PRIMARY KEY,
    tension     REAL NOT NULL,
    direction   TEXT NOT NULL,
    rationality REAL NOT NULL,
    updated_at  TEXT NOT NULL
);
`

// #endregion

// #region memory-struct

// ToneMemory remembers the last observed tone per persona so a request without
// a previous tone is measured against the persona's last turn.
type ToneMemory struct {
	mu    sync.RWMutex
	tones map[string]tone.Vector
	db    *sql.DB
}

// NewToneMemory creates a memory. A nil db keeps tones in process only.
func NewToneMemory(db *sql.DB) (*ToneMemory, error) {
	if db != nil {
		if _, err := db.Exec(personaTonesSchema); err != nil {
			return nil, fmt.Errorf("migrate persona_tones: %w", err)
		}
	}
	m := newLocalToneMemory()
	m.db = db
	return m, nil
}

func newLocalToneMemory() *ToneMemory {
	return &ToneMemory{tones: make(map[string]tone.Vector)}
}

// #endregion

// #region recall

// Recall returns the last tone remembered for personaID.
func (m *ToneMemory) Recall(personaID string) (tone.Vector, bool, error) {
	m.mu.RLock()
	v, ok := m.tones[personaID]
	m.mu.RUnlock()
	if ok || m.db == nil {
		return v, ok, nil
	}

	var direction string
	err := m.db.QueryRow(
		`SELECT tension, direction, rationality FROM persona_tones WHERE persona_id = ?`, personaID,
	).Scan(&v.Tension, &direction, &v.Rationality)
	if errors.Is(err, sql.ErrNoRows) {
		return tone.Vector{}, false, nil
	}
	if err != nil {
		return tone.Vector{}, false, fmt.Errorf("recall tone: %w", err)
	}
	v.Direction = tone.Direction(direction)

	m.mu.Lock()
	m.tones[personaID] = v
	m.mu.Unlock()
	return v, true, nil
}

// #endregion

// #region remember

// Remember stores v as the latest tone of personaID.
func (m *ToneMemory) Remember(personaID string, v tone.Vector) error {
	m.mu.Lock()
	m.tones[personaID] = v
	m.mu.Unlock()
	if m.db == nil {
		return nil
	}

	_, err := m.db.Exec(
		`INSERT INTO persona_tones (persona_id, tension, direction, rationality, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(persona_id) DO UPDATE SET
		   tension = excluded.tension,
		   direction = excluded.direction,
		   rationality = excluded.rationality,
		   updated_at = excluded.updated_at`,
		personaID, v.Tension, string(v.Direction), v.Rationality, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("remember tone: %w", err)
	}
	return nil
}

// #endregion
