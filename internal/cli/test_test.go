package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := runTestCommand(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandRunsHarnessScenarios(t *testing.T) {
	out, err := runTestCommand(t, "text", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ claim_happy_path")
	assert.Contains(t, out, "✓ orphaned_transfer")
	assert.Contains(t, out, "0 failed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := runTestCommand(t, "json", harnessScenarios, "--filter", "claim_*")
	require.NoError(t, err, out)

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 2, response.Data.Total)
	assert.Equal(t, 2, response.Data.Passed)
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	_, err := runTestCommand(t, "text", harnessScenarios, "--filter", "refund_*", "--golden-dir", goldenDir, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(goldenDir, "refund_after_expiry.golden"))
	require.NoError(t, err)
	shipped, err := os.ReadFile("../harness/testdata/golden/refund_after_expiry.golden")
	require.NoError(t, err)
	assert.Equal(t, string(shipped), string(written))

	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "refund_after_expiry.golden"), []byte("{}"), 0644))
	out, err := runTestCommand(t, "text", harnessScenarios, "--filter", "refund_*", "--golden-dir", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ refund_after_expiry")
	assert.Contains(t, out, "trace does not match")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
name: bad
description: "expects the wrong outcome"
steps:
  - op: refund
    as: alice
    at: 1
    contract: nope
    expect: { success: true }
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [oops"), 0644))

	out, err := runTestCommand(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ bad")
	assert.Contains(t, out, "failed to load scenario")
	assert.Contains(t, out, "0 passed, 2 failed, 2 total")
}

func TestTestHelpText(t *testing.T) {
	out, err := runTestCommand(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "conformance")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test1.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "test2.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "ignore.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "claim-ok.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "claim-late.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "refund-test.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "claim-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = findScenarioFiles(tmpDir, "[")
	assert.Error(t, err)
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
