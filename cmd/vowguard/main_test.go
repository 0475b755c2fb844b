package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/vowguard/internal/integrity"
	"github.com/danielpatrickdp/vowguard/internal/logging"
	"github.com/danielpatrickdp/vowguard/internal/orchestrator"
	"github.com/danielpatrickdp/vowguard/internal/violation"
)

// writeConfig points storage at a fresh database and returns the config path.
func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "ledger.db")
	cfgPath = filepath.Join(dir, "vowguard.yaml")
	body := "log:\n  level: error\nstorage:\n  db_path: " + dbPath + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath, dbPath
}

func seedLedger(t *testing.T, dbPath string) {
	t.Helper()
	s, err := violation.NewStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Append(
		violation.Point{ID: "p1", Text: "perhaps", Embedding: []float32{1, 0}, VowID: "VOW_001_TRUTHFULNESS", Severity: 0.7, Score: 0.8, CapturedAt: time.Now()},
		violation.Point{ID: "p2", Text: "never mind", Embedding: []float32{0, 1}, VowID: "does not evade emotion", Severity: 0.8, Score: 0.6, CapturedAt: time.Now()},
	))
	require.NoError(t, logging.LogEvaluation(s.DB(), logging.EvaluationEntry{
		EvaluationID:       "0123456789abcdef",
		PersonaID:          "companion",
		Honest:             false,
		ContradictionScore: 0.8,
		Reason:             "semantic violation",
	}))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvaluateLines_StopsAtQuit(t *testing.T) {
	var seen []string
	var errOut bytes.Buffer
	in := strings.NewReader("first\n\n  second  \nbad\nquit\nafter\n")
	err := evaluateLines(in, &errOut, func(s string) error {
		seen = append(seen, s)
		if s == "bad" {
			return errors.New("boom")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "bad"}, seen)
	assert.Contains(t, errOut.String(), "error: boom")
}

func TestPrintOutcome(t *testing.T) {
	out := orchestrator.Outcome{
		EvaluationID: "e1",
		Reply:        "[Resonant Style] hello",
		Integrity:    integrity.Result{Honest: true, ContradictionScore: 0.1},
	}
	out.Hint.ApplyNextTurn = true
	out.Hint.RecommendedBehavior = "hold steady"

	var text bytes.Buffer
	require.NoError(t, printOutcome(&text, out, false))
	assert.Contains(t, text.String(), "[Resonant Style] hello")
	assert.Contains(t, text.String(), "honest=true")
	assert.Contains(t, text.String(), "next turn: hold steady")

	var js bytes.Buffer
	require.NoError(t, printOutcome(&js, out, true))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "e1", decoded["evaluation_id"])
}

func TestExportCmd_WritesLedger(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seedLedger(t, dbPath)

	target := filepath.Join(t.TempDir(), "export.json")
	_, err := run(t, "--config", cfgPath, "export", "--out", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var exp violation.Export
	require.NoError(t, json.Unmarshal(data, &exp))
	assert.Equal(t, 2, exp.Metadata.TotalPoints)
	assert.Equal(t, 1, exp.Metadata.ByVow["VOW_001_TRUTHFULNESS"])
}

func TestInspectCmd(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seedLedger(t, dbPath)

	out, err := run(t, "--config", cfgPath, "inspect", "--last", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "0123456789ab")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "semantic violation")
	assert.Contains(t, out, "violation points in ledger: 2")

	js, err := run(t, "--config", cfgPath, "inspect", "--json")
	require.NoError(t, err)
	assert.Contains(t, js, `"violation_points": 2`)
}

func TestInspectCmd_Empty(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := run(t, "--config", cfgPath, "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "no evaluations found")
}

func TestReplayCmd_ReferenceScenarios(t *testing.T) {
	out, err := run(t, "replay", filepath.Join("..", "..", "internal", "replay", "testdata", "scenarios.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "turns=5")
	assert.NotContains(t, out, "MISMATCH")
}

func TestReplayCmd_MissingFixture(t *testing.T) {
	_, err := run(t, "replay", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
