package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hypetrace/internal/testutil"
)

// writeFile writes data to name inside dir and returns the path.
func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func simpleTrace(t *testing.T) []byte {
	return testutil.Trace(t,
		testutil.Attach(nil, []any{testutil.Def(1, []any{1, "a"})}),
		testutil.Emit(1),
	)
}

func TestDecode_Stdout(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", simpleTrace(t))

	out, errOut, code := execute(t, in)
	assert.Equal(t, ExitSuccess, code, errOut)
	assert.Equal(t, "[\n    [1, \"a\"]\n]\n", out)
	assert.Empty(t, errOut)
}

func TestDecode_OutputForms(t *testing.T) {
	tests := []struct {
		name string
		args func(in, out string) []string
	}{
		{"short separate", func(in, out string) []string { return []string{in, "-o", out} }},
		{"short attached", func(in, out string) []string { return []string{"-o" + out, in} }},
		{"long separate", func(in, out string) []string { return []string{"--output", out, in} }},
		{"long equals", func(in, out string) []string { return []string{in, "--output=" + out} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			in := writeFile(t, dir, "in.trace", simpleTrace(t))
			outPath := filepath.Join(dir, "out.txt")

			stdout, errOut, code := execute(t, tt.args(in, outPath)...)
			require.Equal(t, ExitSuccess, code, errOut)
			assert.Empty(t, stdout)

			got, err := os.ReadFile(outPath)
			require.NoError(t, err)
			assert.Equal(t, "[\n    [1, \"a\"]\n]\n", string(got))
		})
	}
}

func TestDecode_DashDashInput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "-odd.trace", simpleTrace(t))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, errOut, code := execute(t, "--", "-odd.trace")
	assert.Equal(t, ExitSuccess, code, errOut)
	assert.Equal(t, "[\n    [1, \"a\"]\n]\n", out)
}

func TestDecode_MissingInput(t *testing.T) {
	_, errOut, code := execute(t, filepath.Join(t.TempDir(), "missing.trace"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "failed to open input")
}

func TestDecode_TraceErrorKeepsPartialOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.trace", testutil.Trace(t,
		testutil.Attach(nil, []any{testutil.Def(1, []any{1})}),
		testutil.Emit(1),
		testutil.Emit(5),
	))
	outPath := filepath.Join(dir, "out.txt")

	_, errOut, code := execute(t, in, "-o", outPath)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "Error [UNKNOWN_REFERENCE]: object id is not live (record=2, id=5)\n", errOut)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "[\n    [1]", string(got))
}

func TestDecode_TraceErrorJSON(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", testutil.Trace(t, testutil.Emit(3)))

	_, errOut, code := execute(t, "--format", "json", in)
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(errOut), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_REFERENCE", resp.Error.Code)
	assert.Equal(t, map[string]any{"record": float64(0), "id": float64(3)}, resp.Error.Details)
}

func TestDecode_NotATrace(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", []byte{0xa0})

	out, errOut, code := execute(t, in)
	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Error [DECODE_FAILED]")
}

func TestDecode_Stats(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", simpleTrace(t))

	_, errOut, code := execute(t, "--stats", in)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, errOut, "records:        2 (1 attach, 1 emit)")
	assert.Contains(t, errOut, "elements:       1 (0 retired unwritten)")
}

func TestDecode_StatsJSON(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", simpleTrace(t))

	_, errOut, code := execute(t, "--stats", "--format", "json", in)
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Elements int `json:"elements"`
			Stats    struct {
				Records     int `json:"records"`
				Definitions int `json:"definitions"`
			} `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(errOut), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Elements)
	assert.Equal(t, 2, resp.Data.Stats.Records)
	assert.Equal(t, 1, resp.Data.Stats.Definitions)
}

func duplicateRootTrace(t *testing.T) []byte {
	return testutil.Trace(t,
		testutil.Attach(nil, []any{
			testutil.Def(1, testutil.Share([]any{"x"})),
			testutil.Shared(0),
		}),
		testutil.Emit(1),
	)
}

func TestDecode_DuplicateRoot(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", duplicateRootTrace(t))

	out, errOut, code := execute(t, in)
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "[\n    [\"x\"]\n]\n", out)
	assert.Contains(t, errOut, "value attached to root more than once")
}

func TestDecode_StrictRoots(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", duplicateRootTrace(t))

	out, errOut, code := execute(t, "--strict-roots", in)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "[", out)
	assert.Contains(t, errOut, "Error [DUPLICATE_ROOT]")
}

func TestDecode_SelfReference(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", testutil.Trace(t,
		testutil.Attach(nil, []any{testutil.Def(1, testutil.Share([]any{1, testutil.Shared(0)}))}),
		testutil.Emit(1),
	))

	out, _, code := execute(t, in)
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "[\n    [1, ...]\n]\n", out)
}

func TestDecode_Config(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.trace", testutil.Trace(t,
		testutil.Attach(nil, []any{testutil.Def(1, []any{"e\u0301", []byte{0x00, 0xff}})}),
		testutil.Emit(1),
	))
	cfg := writeFile(t, dir, "decode.cue", []byte("nfc: true\nbytes: \"base64\"\n"))

	out, errOut, code := execute(t, "--config", cfg, in)
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Equal(t, "[\n    [\"\u00e9\", b64'AP8']\n]\n", out)

	// Flags override the file.
	out, errOut, code = execute(t, "--config", cfg, "--bytes", "hex", "--nfc=false", in)
	require.Equal(t, ExitSuccess, code, errOut)
	assert.Equal(t, "[\n    [\"e\u0301\", h'00ff']\n]\n", out)
}

func TestDecode_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.trace", simpleTrace(t))
	cfg := writeFile(t, dir, "decode.cue", []byte("bytes: \"base85\"\n"))

	_, errOut, code := execute(t, "--config", cfg, in)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "invalid config")
}

func TestDecode_InvalidByteEncoding(t *testing.T) {
	in := writeFile(t, t.TempDir(), "in.trace", simpleTrace(t))

	_, errOut, code := execute(t, "--bytes", "base85", in)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, errOut, "invalid options")
}
