package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", "testdata/drop.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "ball\t")
	assert.Contains(t, out, "ground\t")
	assert.Less(t, strings.Index(out, "ball"), strings.Index(out, "ground"))
}

func TestValidateRejectsBrokenScene(t *testing.T) {
	_, err := execute(t, "validate", "testdata/broken.yaml")
	require.Error(t, err)
}

func TestValidateRejectsMissingConfig(t *testing.T) {
	_, err := execute(t, "validate", "--config", "testdata/missing.yaml", "testdata/drop.yaml")
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	out, err := execute(t, "run", "--config", "testdata/config.yaml", "-n", "60", "testdata/drop.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "steps=60 ")
	assert.Contains(t, out, "bodies=2 ")
	assert.Contains(t, out, "digest=")
}

func TestRunIsDeterministic(t *testing.T) {
	first, err := execute(t, "run", "-n", "90", "testdata/drop.yaml")
	require.NoError(t, err)
	second, err := execute(t, "run", "-n", "90", "testdata/drop.yaml")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunPrintsSnapshots(t *testing.T) {
	out, err := execute(t, "run", "-n", "4", "--every", "2", "testdata/drop.yaml")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, `"bodies":`))
}

func TestServeNeedsAListener(t *testing.T) {
	_, err := execute(t, "serve", "testdata/drop.yaml")
	require.Error(t, err)
}

func TestBadLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "validate", "testdata/drop.yaml")
	require.Error(t, err)
}
