package reflection

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/danielpatrickdp/vowguard/internal/tone"
	"github.com/danielpatrickdp/vowguard/internal/vow"
)

// reflectionPromptTemplate asks the generator to assess its own previous reply.
const reflectionPromptTemplate = `You are an assistant able to reflect on your own replies.
Write a short natural-language reflection on the reply below. Say whether it drifted
from your vows or from your persona's tone, and why.

User input:
"{{.Prompt}}"

Your reply:
"{{.Output}}"

Tone of your reply:
tension: {{f2 .Tone.Tension}}
direction: {{.Tone.Direction}} (sincerity {{f2 .Sincerity}})
rationality: {{f2 .Tone.Rationality}}

Integrity reading of that tone:
truthfulness: {{f2 .Integrity.Truthfulness}}
sincerity: {{f2 .Integrity.Sincerity}}
responsibility: {{f2 .Integrity.Responsibility}}

Expected persona signature:
tension: {{f2 .Signature.Tension}}
direction: {{.Signature.Direction}}
rationality: {{f2 .Signature.Rationality}}

Your vows:
{{range $i, $v := .Vows}}({{inc $i}}) {{$v}}
{{end}}
Change against the previous turn:
tension: {{f2 .Delta.Tension}}
direction: {{f2 .Delta.Direction}}
rationality: {{f2 .Delta.Rationality}}
{{if .Violations}}
Semantic analysis found:
{{range .Violations}}- vow "{{.VowID}}": {{.Description}} (score {{f2 .Score}})
{{end}}{{end}}
Reflect honestly so a human can judge whether you were sincere and consistent.
If the reply drifted from a vow or the expected tone, name it and explain why.`

var promptFuncs = template.FuncMap{
	"f2":  func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"inc": func(i int) int { return i + 1 },
}

type promptData struct {
	Prompt     string
	Output     string
	Tone       tone.Vector
	Sincerity  float64
	Integrity  tone.IntegrityVector
	Signature  tone.Vector
	Vows       []string
	Delta      tone.Delta
	Violations []vow.MatchResult
}

func newPromptTemplate() (*template.Template, error) {
	tmpl, err := template.New("reflection").Funcs(promptFuncs).Parse(reflectionPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("compile reflection prompt: %w", err)
	}
	return tmpl, nil
}

// buildPrompt renders the reflection context for in.
func (t *Tuner) buildPrompt(in Input) (string, error) {
	data := promptData{
		Prompt:     in.Prompt,
		Output:     in.Output,
		Tone:       in.Tone,
		Sincerity:  t.calculus.Sincerity(in.Tone.Direction),
		Integrity:  t.calculus.Integrity(in.Tone),
		Signature:  in.Persona.Signature,
		Vows:       in.Persona.Vows,
		Delta:      t.calculus.Delta(in.Tone, in.PrevTone),
		Violations: vow.Violations(in.Matches),
	}
	var buf bytes.Buffer
	if err := t.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render reflection prompt: %w", err)
	}
	return buf.String(), nil
}
