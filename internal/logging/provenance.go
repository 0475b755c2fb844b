package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region evaluation-entry
// EvaluationEntry is a single row in the evaluation_log table.
type EvaluationEntry struct {
	EvaluationID       string
	PersonaID          string
	Honest             bool
	ContradictionScore float64
	IntegrityDelta     float64
	ViolationsJSON     string
	HotspotsJSON       string
	HintJSON           string
	Reason             string
	CreatedAt          time.Time
}

// #endregion evaluation-entry

// #region log-evaluation
// LogEvaluation writes a provenance entry to the evaluation_log table.
func LogEvaluation(db *sql.DB, entry EvaluationEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO evaluation_log (evaluation_id, persona_id, honest, contradiction_score, integrity_delta, violations_json, hotspots_json, hint_json, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EvaluationID,
		entry.PersonaID,
		entry.Honest,
		entry.ContradictionScore,
		entry.IntegrityDelta,
		nullIfEmpty(entry.ViolationsJSON),
		nullIfEmpty(entry.HotspotsJSON),
		nullIfEmpty(entry.HintJSON),
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log evaluation: %w", err)
	}
	return nil
}

// #endregion log-evaluation

// #region recent-evaluations
// RecentEvaluations returns up to limit entries, newest first.
func RecentEvaluations(db *sql.DB, limit int) ([]EvaluationEntry, error) {
	rows, err := db.Query(
		`SELECT evaluation_id, persona_id, honest, contradiction_score, integrity_delta,
		        violations_json, hotspots_json, hint_json, reason, created_at
		 FROM evaluation_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent evaluations: %w", err)
	}
	defer rows.Close()

	var out []EvaluationEntry
	for rows.Next() {
		var e EvaluationEntry
		var violations, hotspots, hint, reason sql.NullString
		var created string
		if err := rows.Scan(&e.EvaluationID, &e.PersonaID, &e.Honest, &e.ContradictionScore, &e.IntegrityDelta,
			&violations, &hotspots, &hint, &reason, &created); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		e.ViolationsJSON = violations.String
		e.HotspotsJSON = hotspots.String
		e.HintJSON = hint.String
		e.Reason = reason.String
		at, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("evaluation %s created_at: %w", e.EvaluationID, err)
		}
		e.CreatedAt = at
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion recent-evaluations

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
