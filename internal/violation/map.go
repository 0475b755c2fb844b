package violation

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// #region derive

// Derive builds one point per violated match. It is the only constructor of
// points; personaID may be empty.
func Derive(text string, emb []float32, matches []vow.MatchResult, t tone.Vector, delta tone.Delta, personaID string) []Point {
	now := time.Now().UTC()
	var points []Point
	for _, m := range matches {
		if !m.Violated {
			continue
		}
		points = append(points, Point{
			ID:         uuid.New().String(),
			Text:       text,
			Embedding:  append([]float32(nil), emb...),
			VowID:      m.VowID,
			RuleKey:    m.RuleKey,
			PersonaID:  personaID,
			Severity:   m.Severity,
			Score:      m.Score,
			Tone:       t,
			Delta:      delta,
			CapturedAt: now,
		})
	}
	return points
}

// #endregion derive

// #region map

// Map is the in-memory append-only ledger of points. Safe for concurrent use.
type Map struct {
	mu     sync.Mutex
	points []Point
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{}
}

// Add appends points in call order.
func (m *Map) Add(points ...Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.points = append(m.points, clonePoint(p))
	}
}

// All returns a copy of every point in insertion order.
func (m *Map) All() []Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Point, len(m.points))
	for i, p := range m.points {
		out[i] = clonePoint(p)
	}
	return out
}

// Len returns the number of points.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

// Export returns every point plus summary metadata.
func (m *Map) Export() Export {
	return Summarize(m.All())
}

// #endregion map

// #region summarize

// Summarize builds an export document from points.
func Summarize(points []Point) Export {
	if points == nil {
		points = []Point{}
	}
	meta := Metadata{
		TotalPoints: len(points),
		ByVow:       make(map[string]int),
		GeneratedAt: time.Now().UTC(),
	}
	var sum float64
	for _, p := range points {
		meta.ByVow[p.VowID]++
		sum += p.Score
		meta.MaxScore = max(meta.MaxScore, p.Score)
	}
	if len(points) > 0 {
		meta.MeanScore = sum / float64(len(points))
	}
	return Export{Points: points, Metadata: meta}
}

// WriteExport encodes export as indented JSON.
func WriteExport(w io.Writer, export Export) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(export); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// #endregion summarize

func clonePoint(p Point) Point {
	p.Embedding = append([]float32(nil), p.Embedding...)
	return p
}
