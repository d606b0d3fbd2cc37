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

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand("test")
	require.NotNil(t, cmd)
	assert.Equal(t, "querybridge", cmd.Use)
	assert.Equal(t, "test", cmd.Version)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand("test")
	commands := []string{"serve", "probe", "exec", "shapes"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand("test")

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "config.yaml", configFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "yaml", formatFlag.DefValue)
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand("test")
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	flag := serveCmd.Flags().Lookup("skip-maintenance")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"--format", "xml", "shapes"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestShapesCommand_JSON(t *testing.T) {
	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--format", "json", "shapes", "--table", "roles"})

	require.NoError(t, cmd.Execute())

	var entries []ShapeEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &entries))
	require.NotEmpty(t, entries)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		assert.Equal(t, "roles", e.Table)
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "roles_insert")
	assert.Contains(t, names, "roles_by_name")
}

func TestShapesCommand_YAMLListsGenericShapes(t *testing.T) {
	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"shapes"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "name: update_generic")
	assert.Contains(t, out.String(), "name: delete_any")
}

// memoryConfig writes a config file selecting the in-memory backend.
func memoryConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("QUERY_BACKEND", "memory")
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  type: memory\n"), 0o600))
	return path
}

func TestExecCommand_Insert(t *testing.T) {
	cfgPath := memoryConfig(t)

	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "--format", "json",
		"exec", "INSERT INTO roles (name) VALUES ($1) RETURNING *", "auditor"})

	require.NoError(t, cmd.Execute())

	var result struct {
		Rows     []map[string]any `json:"rows"`
		RowCount int              `json:"rowCount"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, 1, result.RowCount)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "auditor", result.Rows[0]["name"])
	assert.NotEmpty(t, result.Rows[0]["id"])
}

func TestExecCommand_NotFoundIsEmpty(t *testing.T) {
	cfgPath := memoryConfig(t)

	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "exec", "--shape", "roles_by_id", "missing"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "rows: []")
	assert.Contains(t, out.String(), "rowCount: 0")
}

func TestExecCommand_UnknownShape(t *testing.T) {
	cmd := NewRootCommand("test")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"exec", "--shape", "nope", "x"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestProbeCommand_Memory(t *testing.T) {
	cfgPath := memoryConfig(t)

	cmd := NewRootCommand("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "probe"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "healthy: true")
	assert.Contains(t, out.String(), "backend: memory")
}

func TestParseParam(t *testing.T) {
	assert.Nil(t, parseParam("null"))
	assert.Equal(t, true, parseParam("true"))
	assert.Equal(t, false, parseParam("FALSE"))
	assert.Equal(t, int64(42), parseParam("42"))
	assert.Equal(t, "4.5", parseParam("4.5"))
	assert.Equal(t, "alice@example.com", parseParam("alice@example.com"))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", assert.AnError)))
}
