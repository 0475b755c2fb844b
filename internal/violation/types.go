package violation

import (
	"time"

	"github.com/danielpatrickdp/vowguard/internal/tone"
)

// #region point
// Point is one violated match recorded in semantic space. Points are created
// by Derive and never modified afterwards.
type Point struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	Embedding  []float32   `json:"embedding"`
	VowID      string      `json:"vow_id"`
	RuleKey    string      `json:"rule_key,omitempty"`
	PersonaID  string      `json:"persona_id,omitempty"`
	Severity   float64     `json:"severity"`
	Score      float64     `json:"score"`
	Tone       tone.Vector `json:"tone"`
	Delta      tone.Delta  `json:"delta"`
	CapturedAt time.Time   `json:"captured_at"`
}

// #endregion point

// #region export
// Metadata summarizes an export. Fields are only ever added.
type Metadata struct {
	TotalPoints int            `json:"total_points"`
	ByVow       map[string]int `json:"by_vow"`
	MeanScore   float64        `json:"mean_score"`
	MaxScore    float64        `json:"max_score"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Export is the document handed to visualization tools.
type Export struct {
	Points   []Point  `json:"points"`
	Metadata Metadata `json:"metadata"`
}

// #endregion export
