package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetdocs-service/internal/sheet"
)

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)

	master := filepath.Join(dir, "maestro.csv")
	weekly := filepath.Join(dir, "semanal.csv")
	require.NoError(t, os.WriteFile(master, []byte(
		"Matricula;Fecha de vencimiento;Conductor;Telefono\n1234ABC;01/01/2024;Ana;612345678\n"), 0o644))
	require.NoError(t, os.WriteFile(weekly, []byte(
		"Matricula;Vencimiento\n1234abc ;15/06/2025\n0000NEW;01/07/2025\n"), 0o644))
	return master, weekly
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReconcileJSON(t *testing.T) {
	master, weekly := writeInputs(t)
	outPath := filepath.Join(filepath.Dir(master), "maestro_actualizado.csv")

	out, err := runRoot(t, "reconcile",
		"--master", master, "--weekly", weekly,
		"--now", "2025-06-10", "--format", "json", "--out", outPath,
		"--log-level", "error")
	require.NoError(t, err, out)

	var summary RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, "2025-06-10", summary.Date)
	assert.Equal(t, 1, summary.Stats.DatesUpdated)
	require.Len(t, summary.Report.Payloads, 1)
	assert.Equal(t, "1234ABC", summary.Report.Payloads[0].Plate)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	table, err := sheet.Read(outPath, data)
	require.NoError(t, err)
	assert.Equal(t, "15/06/2025", table.Cell(0, 1))
}

func TestReconcileTableAndYAML(t *testing.T) {
	master, weekly := writeInputs(t)

	out, err := runRoot(t, "reconcile", "--master", master, "--weekly", weekly, "--now", "2025-06-10", "--log-level", "error")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1234ABC")
	assert.Contains(t, out, "unmatched weekly plate 0000NEW (row 3)")

	out, err = runRoot(t, "reconcile", "--master", master, "--weekly", weekly, "--now", "2025-06-10", "--format", "yaml", "--log-level", "error")
	require.NoError(t, err, out)
	assert.Contains(t, out, "plate: 0000NEW")
}

func TestReconcileErrors(t *testing.T) {
	master, weekly := writeInputs(t)

	_, err := runRoot(t, "reconcile", "--master", master, "--weekly", weekly, "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, err = runRoot(t, "reconcile", "--master", master, "--weekly", weekly, "--now", "June")
	assert.ErrorContains(t, err, "YYYY-MM-DD")

	_, err = runRoot(t, "reconcile", "--master", master, "--weekly", filepath.Join(filepath.Dir(master), "missing.csv"))
	assert.ErrorContains(t, err, "missing.csv")

	_, err = runRoot(t, "reconcile", "--master", master)
	assert.ErrorContains(t, err, "weekly")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "TEXT": FormatTable, "json": FormatJSON, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

// chdir is a Go 1.21-compatible stand-in for testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
