package violation

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/vowguard/internal/tone"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS violation_points (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	point_id      TEXT NOT NULL UNIQUE,
	persona_id    TEXT,
	vow_id        TEXT NOT NULL,
	rule_key      TEXT,
	text          TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	severity      REAL NOT NULL,
	score         REAL NOT NULL,
	tension       REAL NOT NULL,
	direction     TEXT NOT NULL,
	rationality   REAL NOT NULL,
	d_tension     REAL NOT NULL,
	d_direction   REAL NOT NULL,
	d_rationality REAL NOT NULL,
	captured_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_violation_points_vow ON violation_points(vow_id);

CREATE TABLE IF NOT EXISTS evaluation_log (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_id       TEXT NOT NULL,
	persona_id          TEXT NOT NULL,
	honest              INTEGER NOT NULL,
	contradiction_score REAL NOT NULL,
	integrity_delta     REAL NOT NULL,
	violations_json     TEXT,
	hotspots_json       TEXT,
	hint_json           TEXT,
	reason              TEXT,
	created_at          TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store is the durable append-only ledger of violation points.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (logging, reflections).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region append
// Append writes points atomically in order.
func (s *Store) Append(points ...Point) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO violation_points
		(point_id, persona_id, vow_id, rule_key, text, embedding, severity, score,
		 tension, direction, rationality, d_tension, d_direction, d_rationality, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		_, err := stmt.Exec(
			p.ID, nullIfEmpty(p.PersonaID), p.VowID, nullIfEmpty(p.RuleKey), p.Text, encodeVector(p.Embedding),
			p.Severity, p.Score,
			p.Tone.Tension, string(p.Tone.Direction), p.Tone.Rationality,
			p.Delta.Tension, p.Delta.Direction, p.Delta.Rationality,
			p.CapturedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert point %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// #endregion append

// #region list
// List returns points in append order. limit <= 0 returns all of them.
func (s *Store) List(limit int) ([]Point, error) {
	query := `SELECT point_id, persona_id, vow_id, rule_key, text, embedding, severity, score,
		tension, direction, rationality, d_tension, d_direction, d_rationality, captured_at
		FROM violation_points ORDER BY seq ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var personaID, ruleKey sql.NullString
		var blob []byte
		var direction, captured string
		if err := rows.Scan(
			&p.ID, &personaID, &p.VowID, &ruleKey, &p.Text, &blob, &p.Severity, &p.Score,
			&p.Tone.Tension, &direction, &p.Tone.Rationality,
			&p.Delta.Tension, &p.Delta.Direction, &p.Delta.Rationality, &captured,
		); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.PersonaID = personaID.String
		p.RuleKey = ruleKey.String
		p.Embedding = decodeVector(blob)
		p.Tone.Direction = tone.Direction(direction)
		at, err := time.Parse(time.RFC3339Nano, captured)
		if err != nil {
			return nil, fmt.Errorf("point %s captured_at: %w", p.ID, err)
		}
		p.CapturedAt = at
		points = append(points, p)
	}
	return points, rows.Err()
}

// Count returns the number of stored points.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM violation_points`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	return n, nil
}

// #endregion list

// #region vector-encoding
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// #endregion vector-encoding

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
