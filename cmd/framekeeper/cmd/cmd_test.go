package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solatis/framekeeper/internal/failure"
	"github.com/solatis/framekeeper/internal/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
schemas:
  - name: users
    columns:
      - {name: id, type: int64, primary_key: true, min: 1}
      - {name: name, type: string, max_length: 5}
      - {name: age, type: int64, nullable: true, min: 0, max: 150}
`

// resetFlags restores every flag to its default; cobra keeps flag values
// between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setup(t *testing.T) (dir, catalogPath string) {
	t.Helper()
	os.Unsetenv("FK_DB_URL")
	dir = t.TempDir()
	catalogPath = filepath.Join(dir, "schemas.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o600))
	return dir, catalogPath
}

func writeCSV(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidate(t *testing.T) {
	dir, catalogPath := setup(t)
	input := writeCSV(t, dir, "id,name,age\n1,ann,30\n2,bartholomew,\n2,cy,200\n3,dee,x\n")
	failures := filepath.Join(dir, "failures.parquet")
	valid := filepath.Join(dir, "valid.csv")

	out, err := execute(t, "validate", input,
		"--catalog", catalogPath, "--schema", "users", "--log-level", "error",
		"--out", valid, "--failures-out", failures)
	require.NoError(t, err)
	assert.Contains(t, out, "schema users: 1 valid, 3 failed")
	assert.Contains(t, out, "primary_key")

	content, err := os.ReadFile(valid)
	require.NoError(t, err)
	assert.Equal(t, "id,name,age\n1,ann,30\n", string(content))

	info, err := failure.ReadFile(context.Background(), failures)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"primary_key":     2,
		"name|max_length": 1,
		"age|max":         1,
		"age|dtype":       1,
	}, info.Counts())
}

func TestValidate_Strict(t *testing.T) {
	dir, catalogPath := setup(t)
	input := writeCSV(t, dir, "id,name,age\n1,ann,30\n0,bob,1\n")

	_, err := execute(t, "validate", input, "--catalog", catalogPath, "--schema", "users",
		"--log-level", "error", "--strict")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, err = execute(t, "validate", input, "--catalog", catalogPath, "--schema", "users", "--log-level", "error")
	assert.NoError(t, err)
}

func TestValidate_Record(t *testing.T) {
	dir, catalogPath := setup(t)
	input := writeCSV(t, dir, "id,name,age\n1,ann,30\n1,bob,1\n")
	url := "sqlite://" + filepath.Join(dir, "runs.db")

	out, err := execute(t, "validate", input, "--catalog", catalogPath, "--schema", "users",
		"--log-level", "error", "--record", "--db-url", url)
	require.NoError(t, err)
	require.Contains(t, out, "run ")

	var runID string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "run ") {
			runID = strings.TrimPrefix(line, "run ")
		}
	}

	out, err = execute(t, "runs", "list", "--schema", "users", "--db-url", url, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, runID)

	out, err = execute(t, "runs", "show", runID, "--db-url", url, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows: 0 valid, 2 failed")
	assert.Contains(t, out, "primary_key")

	out, err = execute(t, "runs", "prune", "--older-than", "0s", "--db-url", url, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")
}

func TestValidate_Errors(t *testing.T) {
	dir, catalogPath := setup(t)
	input := writeCSV(t, dir, "id,name,age\n1,ann,30\n")

	_, err := execute(t, "validate", input, "--catalog", catalogPath, "--schema", "nope", "--log-level", "error")
	assert.True(t, errors.Is(err, types.ErrUnknownSchema))

	_, err = execute(t, "validate", filepath.Join(dir, "input.json"), "--catalog", catalogPath,
		"--schema", "users", "--log-level", "error")
	assert.Error(t, err)

	_, err = execute(t, "validate", input, "--catalog", catalogPath, "--schema", "users",
		"--log-level", "error", "--record")
	assert.Error(t, err, "recording needs a run store")
}

func TestSample(t *testing.T) {
	dir, catalogPath := setup(t)
	out := filepath.Join(dir, "sample.parquet")

	_, err := execute(t, "sample", "--catalog", catalogPath, "--schema", "users",
		"--rows", "20", "--seed", "7", "--out", out, "--log-level", "error")
	require.NoError(t, err)

	// The sample is valid input for validate.
	report, err := execute(t, "validate", out, "--catalog", catalogPath, "--schema", "users",
		"--strict", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, report, "schema users: 20 valid, 0 failed")

	first, err := execute(t, "sample", "--catalog", catalogPath, "--schema", "users",
		"--rows", "3", "--seed", "7", "--log-level", "error")
	require.NoError(t, err)
	second, err := execute(t, "sample", "--catalog", catalogPath, "--schema", "users",
		"--rows", "3", "--seed", "7", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "id,name,age\n"))
	assert.Len(t, strings.Split(strings.TrimSpace(first), "\n"), 4)
}

func TestMigrate(t *testing.T) {
	dir, _ := setup(t)
	url := "sqlite://" + filepath.Join(dir, "runs.db")

	out, err := execute(t, "migrate", "--db-url", url, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	out, err = execute(t, "migrate", "status", "--db-url", url, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "001_initial_schema.sql")
	assert.Contains(t, out, "true")

	_, err = execute(t, "migrate", "--log-level", "error")
	assert.Error(t, err)
}
