package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	if app != nil {
		require.NoError(t, app.Close())
		app = nil
	}
	return err
}

func TestParseRunID(t *testing.T) {
	id, err := parseRunID("#12")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	id, err = parseRunID("7")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = parseRunID("seven")
	assert.Error(t, err)
}

func TestRunRecordsAndDiffs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	db := filepath.Join(t.TempDir(), "history.db")

	require.NoError(t, execute(t, "run", "bridge", "--ticks", "60", "--db", db))
	require.NoError(t, execute(t, "run", "bridge", "--ticks", "60", "--db", db))
	require.NoError(t, execute(t, "history", "diff", "1", "2", "--db", db))
	require.NoError(t, execute(t, "history", "show", "#1", "--db", db))

	err := execute(t, "history", "show", "99", "--db", db)
	assert.Error(t, err)
}

func TestVerifyReportsPerturbation(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, execute(t, "verify", "bridge", "--ticks", "40", "--replicas", "2"))
	err := execute(t, "verify", "bridge", "--ticks", "40", "--replicas", "2", "--perturb-at", "5", "--stop-on-desync")
	assert.ErrorContains(t, err, "replicas diverged at")
	flagPerturbAt, flagStopOnDesync = 0, false
}

func TestUnknownScenario(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	assert.Error(t, execute(t, "classes", "nowhere"))
}
