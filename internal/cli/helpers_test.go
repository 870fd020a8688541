package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkfuzz/internal/config"
	"github.com/roach88/zkfuzz/internal/programs"
	"github.com/roach88/zkfuzz/internal/testutil"
)

// testRoot returns root options with default settings and a fresh
// artifact directory, so no .env file or ZKFUZZ_* variable leaks in.
func testRoot(t *testing.T, format string) *RootOptions {
	t.Helper()
	cfg := config.Defaults()
	cfg.ArtifactsDir = t.TempDir()
	return &RootOptions{Format: format, Config: &cfg}
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

// skewedProgram interprets to a different commitment than it runs
// natively, so native and yaegi always diverge on it.
func skewedProgram() programs.Program {
	return programs.Program{
		ID:      "skewed",
		Package: "skewed",
		Source: `package skewed

func Commit(raw []byte) ([]int64, error) {
	return []int64{1}, nil
}
`,
		Entry: func([]byte) ([]int64, error) {
			return []int64{2}, nil
		},
	}
}

func skewedRegistry(t *testing.T) *programs.Registry {
	return testutil.Registry(t, skewedProgram())
}
