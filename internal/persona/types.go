package persona

import "github.com/danielpatrickdp/vowguard/internal/tone"

// #region response-style
// ResponseStyle controls how a composed reply is framed.
type ResponseStyle string

const (
	StyleMirror   ResponseStyle = "mirror"
	StyleBuffer   ResponseStyle = "buffer"
	StyleResonant ResponseStyle = "resonant"
	StyleNeutral  ResponseStyle = "neutral"
)

// #endregion response-style

// #region collapse-condition
// CollapseCondition names a trigger and the delta above which it fires.
type CollapseCondition struct {
	Trigger   string  `json:"trigger" yaml:"trigger" validate:"required"`
	Threshold float64 `json:"threshold" yaml:"threshold" validate:"gte=0,lte=1"`
}

// #endregion collapse-condition

// #region persona
// Persona is a declared tone identity with the vows it commits to.
// The core only reads personas; the registry owns them.
type Persona struct {
	ID                 string              `json:"id" yaml:"id" validate:"required"`
	Name               string              `json:"name" yaml:"name"`
	Signature          tone.Vector         `json:"signature" yaml:"signature"`
	Vows               []string            `json:"vows" yaml:"vows" validate:"dive,required"`
	CollapseConditions []CollapseCondition `json:"collapse_conditions" yaml:"collapse_conditions" validate:"dive"`
	ResponseStyle      ResponseStyle       `json:"response_style" yaml:"response_style" validate:"omitempty,oneof=mirror buffer resonant neutral"`
}

// HasVow reports whether the persona commits to vowID.
func (p Persona) HasVow(vowID string) bool {
	for _, v := range p.Vows {
		if v == vowID {
			return true
		}
	}
	return false
}

// #endregion persona
