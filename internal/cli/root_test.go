package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/refcheck/internal/service"
)

type fixtureRow struct {
	id        int64
	name      string
	referrers int
}

// writeSnapshot creates a SQLite knowledgebase file holding the given
// reference databases, each referenced by n ReferenceEntity rows.
func writeSnapshot(t *testing.T, dir, name string, rows ...fixtureRow) string {
	t.Helper()
	path := filepath.Join(dir, name+".db")
	conn, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer conn.Close()

	exec := func(query string, args ...any) {
		_, err := conn.Exec(query, args...)
		require.NoError(t, err)
	}
	exec(`CREATE TABLE DatabaseObject (DB_ID INTEGER PRIMARY KEY, _class TEXT NOT NULL, _displayName TEXT)`)
	exec(`CREATE TABLE ReferenceDatabase_2_name (DB_ID INTEGER NOT NULL, name TEXT, name_rank INTEGER NOT NULL)`)
	exec(`CREATE TABLE ReferenceEntity (DB_ID INTEGER PRIMARY KEY, referenceDatabase INTEGER)`)
	exec(`CREATE TABLE DatabaseIdentifier (DB_ID INTEGER PRIMARY KEY, referenceDatabase INTEGER)`)

	next := int64(100)
	for _, row := range rows {
		exec(`INSERT INTO DatabaseObject VALUES (?, 'ReferenceDatabase', ?)`, row.id, row.name)
		exec(`INSERT INTO ReferenceDatabase_2_name VALUES (?, ?, 0)`, row.id, row.name)
		for i := 0; i < row.referrers; i++ {
			next++
			exec(`INSERT INTO ReferenceEntity VALUES (?, ?)`, next, row.id)
		}
	}
	return path
}

type fixture struct {
	dir      string
	config   string
	previous string
	current  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir: dir,
		previous: writeSnapshot(t, dir, "gk_previous",
			fixtureRow{id: 1, name: "UniProt", referrers: 10},
			fixtureRow{id: 2, name: "ENSEMBL", referrers: 5},
			fixtureRow{id: 3, name: "OMIM", referrers: 2},
		),
		current: writeSnapshot(t, dir, "gk_current",
			fixtureRow{id: 7, name: "UniProt", referrers: 12},
			fixtureRow{id: 8, name: "ENSEMBL", referrers: 3},
			fixtureRow{id: 9, name: "ChEBI", referrers: 1},
		),
	}
	f.config = filepath.Join(dir, "config.properties")
	props := fmt.Sprintf("dbBackend=sqlite3\nlogFile=%s\nlogLevel=ERROR\n", filepath.Join(dir, "refcheck.log"))
	require.NoError(t, os.WriteFile(f.config, []byte(props), 0644))
	return f
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

const wantTextReport = "Missing Reference Databases:\n\n" +
	"ERROR: OMIM is missing in the current database\n\n" +
	"Reduced Count Reference Databases:\n\n" +
	"WARN: [ReferenceDatabase:8] ENSEMBL has a lower referrer count than previously: 3 (current) vs 5 (previous)\n\n" +
	"Proper Count Reference Databases:\n\n" +
	"[ReferenceDatabase:7] UniProt - Current: 12; Previous 10\n\n" +
	"\n"

func TestCheckTextReport(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := run(t, "--config", f.config, "-n", f.current, "-o", f.previous)
	require.NoError(t, err)
	assert.Equal(t, wantTextReport, stdout)
}

func TestCheckConcurrentMatchesSequential(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := run(t, "--config", f.config, "-n", f.current, "-o", f.previous, "--concurrency", "4")
	require.NoError(t, err)
	assert.Equal(t, wantTextReport, stdout)
}

func TestCheckJSONReport(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := run(t, "--config", f.config,
		"--newDatabaseName", f.current, "--oldDatabaseName", f.previous, "--format", "json")
	require.NoError(t, err)

	var view service.ResultView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, service.Summary{Total: 3, Missing: 1, Reduced: 1, Stable: 1}, view.Summary)
	require.Len(t, view.Missing, 1)
	assert.Equal(t, "OMIM", view.Missing[0].Name)
	assert.Nil(t, view.Missing[0].NewCount)
	require.Len(t, view.Reduced, 1)
	assert.Equal(t, 3, *view.Reduced[0].NewCount)
	assert.Equal(t, 5, *view.Reduced[0].OldCount)
}

func TestCheckYAMLReportToFile(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "report.yaml")

	stdout, _, err := run(t, "--config", f.config, "-n", f.current, "-o", f.previous,
		"--format", "YAML", "--output", out)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var view service.ResultView
	require.NoError(t, yaml.Unmarshal(data, &view))
	assert.Equal(t, 3, view.Summary.Total)
	require.Len(t, view.Stable, 1)
	assert.Equal(t, "UniProt", view.Stable[0].Name)
}

func TestCheckFailOnRegression(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := run(t, "--config", f.config, "-n", f.current, "-o", f.previous, "--fail-on-regression")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegressions)
	assert.Equal(t, ExitRegressions, ExitCode(err))
	assert.Equal(t, wantTextReport, stdout, "report is written before failing")

	// Comparing a snapshot with itself has no regressions
	_, _, err = run(t, "--config", f.config, "-n", f.previous, "-o", f.previous, "--fail-on-regression")
	assert.NoError(t, err)
}

func TestCheckErrors(t *testing.T) {
	f := newFixture(t)
	missingDB := filepath.Join(f.dir, "missing", "gk.db")
	typoDB := filepath.Join(f.dir, "gk_typo.db")

	tests := []struct {
		name      string
		args      []string
		wantCode  int
		wantInErr string
		noFile    string
	}{
		{
			name:      "missing required flag",
			args:      []string{"--config", f.config, "-n", f.current},
			wantCode:  ExitFailure,
			wantInErr: "oldDatabaseName",
		},
		{
			name:      "missing required flag beats missing config",
			args:      []string{"--config", filepath.Join(f.dir, "nope.properties"), "-n", f.current},
			wantCode:  ExitFailure,
			wantInErr: "oldDatabaseName",
		},
		{
			name:     "mistyped snapshot path",
			args:     []string{"--config", f.config, "-n", f.current, "-o", typoDB},
			wantCode: ExitConnection,
			noFile:   typoDB,
		},
		{
			name:     "unknown format",
			args:     []string{"--config", f.config, "-n", f.current, "-o", f.previous, "--format", "xml"},
			wantCode: ExitConfiguration,
		},
		{
			name:     "explicit config missing",
			args:     []string{"--config", filepath.Join(f.dir, "nope.properties"), "-n", f.current, "-o", f.previous},
			wantCode: ExitConfiguration,
		},
		{
			name:     "unreachable snapshot",
			args:     []string{"--config", f.config, "-n", f.current, "-o", missingDB},
			wantCode: ExitConnection,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ExitCode(err), err.Error())
			if tt.wantInErr != "" {
				assert.Contains(t, err.Error(), tt.wantInErr)
			}
			if tt.noFile != "" {
				assert.NoFileExists(t, tt.noFile, "snapshots are opened read-only")
			}
			assert.Empty(t, stdout)
		})
	}
}

func TestListCommand(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := run(t, "--config", f.config, "list", "--database", f.current, "--counts")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Reference databases in %s (3):\n\n", f.current)+
		"- [ReferenceDatabase:9] ChEBI (1)\n"+
		"- [ReferenceDatabase:8] ENSEMBL (3)\n"+
		"- [ReferenceDatabase:7] UniProt (12)\n", stdout)

	stdout, _, err = run(t, "--config", f.config, "list", "-d", f.previous, "--side", "old")
	require.NoError(t, err)
	assert.Contains(t, stdout, "- [ReferenceDatabase:3] OMIM\n")

	_, _, err = run(t, "--config", f.config, "list", "-d", f.previous, "--side", "sideways")
	assert.Equal(t, ExitConfiguration, ExitCode(err))
}

func TestListEmptySnapshot(t *testing.T) {
	f := newFixture(t)
	empty := writeSnapshot(t, f.dir, "empty")

	stdout, _, err := run(t, "--config", f.config, "list", "-d", empty)
	require.NoError(t, err)
	assert.Equal(t, "No reference databases found.\n", stdout)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "refcheck "+Version+"\n", stdout)
}
