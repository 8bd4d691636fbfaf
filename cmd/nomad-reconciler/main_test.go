package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "nomad-reconciler "))
}

func TestRootRejectsArgs(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"unexpected"})
	assert.Error(t, cmd.Execute())
}

func TestRootMissingEndpointExitCode(t *testing.T) {
	t.Setenv("NOMAD_ENDPOINT", "")
	t.Setenv("NOMAD_RECONCILER_CONFIG", "")
	t.Setenv("LOGGER_LEVEL", "error")

	cmd := rootCmd()
	cmd.SetArgs([]string{})
	err := cmd.Execute()

	var code exitCode
	require.ErrorAs(t, err, &code)
	assert.Equal(t, exitCode(1), code)
}

func TestExitCodeError(t *testing.T) {
	assert.Equal(t, "exit status 1", exitCode(1).Error())
}
