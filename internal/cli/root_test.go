package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "zkfuzz", cmd.Use)
	assert.Contains(t, cmd.Long, "two backends")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "campaign", "plan", "programs", "summary", "validate-result", "adapter"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestAdapterCommandIsHidden(t *testing.T) {
	cmd := NewRootCommand()
	sub, _, err := cmd.Find([]string{"adapter"})
	require.NoError(t, err)
	assert.True(t, sub.Hidden)
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("env-file"))
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	_, err := execute(NewRootCommand(), "programs", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootMissingEnvFile(t *testing.T) {
	_, err := execute(NewRootCommand(), "programs", "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load settings")
}

func TestRootEnvFileSetsArtifacts(t *testing.T) {
	dir := t.TempDir()
	artifacts := filepath.Join(dir, "out")
	envFile := filepath.Join(dir, "zkfuzz.env")
	require.NoError(t, os.WriteFile(envFile, []byte("ZKFUZZ_ARTIFACTS_DIR="+artifacts+"\n"), 0o644))

	_, err := execute(NewRootCommand(), "summary", "--env-file", envFile)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(artifacts, "artifacts.db"))
}
